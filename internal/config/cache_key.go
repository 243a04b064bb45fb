package config

import (
	"fmt"

	"github.com/google/uuid"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SectionReorderLock guards reorders of a section's page list.
func (r *CacheKeyStruct) SectionReorderLock(sectionID uuid.UUID) string {
	return fmt.Sprintf("reorder:section:%s", sectionID)
}

// PageReorderLock guards reorders of a page's block list.
func (r *CacheKeyStruct) PageReorderLock(pageID uuid.UUID) string {
	return fmt.Sprintf("reorder:page:%s", pageID)
}

// PageEventsChannel is the pub/sub channel for changes to a page's blocks.
func (r *CacheKeyStruct) PageEventsChannel(pageID uuid.UUID) string {
	return fmt.Sprintf("page:%s:events", pageID)
}

// SectionEventsChannel is the pub/sub channel for changes to a section's pages.
func (r *CacheKeyStruct) SectionEventsChannel(sectionID uuid.UUID) string {
	return fmt.Sprintf("section:%s:events", sectionID)
}

// RateLimitKey counts requests of one subject within the current window.
func (r *CacheKeyStruct) RateLimitKey(scope, subject string, window int64) string {
	return fmt.Sprintf("ratelimit:%s:%s:%d", scope, subject, window)
}

var CacheKey = NewCacheKeyStruct()
