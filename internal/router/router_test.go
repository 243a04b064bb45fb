package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/stemsi/courseware-backend/internal/config"
	"github.com/stemsi/courseware-backend/internal/database"
	"github.com/stemsi/courseware-backend/internal/handler"
	"github.com/stemsi/courseware-backend/internal/middleware"
	"github.com/stemsi/courseware-backend/internal/model"
	"github.com/stemsi/courseware-backend/internal/realtime"
	"github.com/stemsi/courseware-backend/internal/repository"
	"github.com/stemsi/courseware-backend/internal/repository/sqlite"
	"github.com/stemsi/courseware-backend/internal/response"
	"github.com/stemsi/courseware-backend/internal/service"
	"github.com/stemsi/courseware-backend/internal/storage"
	"github.com/stemsi/courseware-backend/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

type noLock struct{}

func (noLock) Acquire(context.Context, string) (func(), error) { return func() {}, nil }

// hub fans published events out to listeners, standing in for Redis pub/sub.
type hub struct {
	mu        sync.Mutex
	events    []realtime.Event
	listeners map[string][]chan []byte
}

func (h *hub) Publish(_ context.Context, ev realtime.Event) error {
	payload, _ := json.Marshal(ev)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	for _, ch := range h.listeners[realtime.Channel(ev.Scope, ev.ParentID)] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

func (h *hub) Listen(_ context.Context, channels ...string) (<-chan []byte, func(), error) {
	ch := make(chan []byte, 8)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listeners == nil {
		h.listeners = map[string][]chan []byte{}
	}
	for _, c := range channels {
		h.listeners[c] = append(h.listeners[c], ch)
	}
	return ch, func() {}, nil
}

type jobs struct {
	mu   sync.Mutex
	list [][]byte
}

func (j *jobs) Push(_ context.Context, job []byte) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.list = append(j.list, job)
	return nil
}

type memCounter struct {
	mu   sync.Mutex
	hits map[string]int64
}

func (m *memCounter) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hits == nil {
		m.hits = map[string]int64{}
	}
	m.hits[key]++
	return m.hits[key], nil
}

type depth int64

func (d depth) Len(context.Context) (int64, error) { return int64(d), nil }

type env struct {
	t       *testing.T
	router  *gin.Engine
	stores  repository.Stores
	auth    *service.AuthService
	hub     *hub
	jobs    *jobs
	section model.Section
	page    model.Page
	teacher string
	student string
	admin   string
}

func setup(t *testing.T) *env {
	t.Helper()
	return setupLimited(t, Limiters{})
}

func setupLimited(t *testing.T, limiters Limiters) *env {
	t.Helper()
	ctx := context.Background()
	cfg := &config.Config{
		GinMode:     gin.TestMode,
		JWTSecret:   "router-test",
		JWTExpiry:   time.Hour,
		BcryptCost:  bcrypt.MinCost,
		BlobBackend: config.BlobLocal,
		UploadDir:   t.TempDir(),
	}

	db, err := database.OpenSQLite(ctx, fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	stores := sqlite.NewStores(db)

	e := &env{t: t, stores: stores, hub: &hub{}, jobs: &jobs{}}
	e.auth = service.NewAuthService(cfg, stores.Users, zerolog.Nop())
	courses := service.NewCourseService(stores, zerolog.Nop())
	authoring := service.NewAuthoringService(stores, noLock{}, e.hub, e.jobs, zerolog.Nop())
	blobs := storage.NewLocalStore(cfg.UploadDir, "http://files.test")
	submissions := service.NewSubmissionService(stores, blobs, 1<<20, zerolog.Nop())

	e.router = SetupRouter(e.auth, &Handlers{
		Auth:       handler.NewAuthHandler(e.auth, zerolog.Nop()),
		Course:     handler.NewCourseHandler(courses, zerolog.Nop()),
		Authoring:  handler.NewAuthoringHandler(authoring, zerolog.Nop()),
		Submission: handler.NewSubmissionHandler(submissions, 1<<20, zerolog.Nop()),
		WS:         handler.NewWSHandler(e.hub, courses, authoring, submissions, limiters.Submit, zerolog.Nop(), nil),
		System:     handler.NewSystemHandler(depth(4), zerolog.Nop()),
	}, limiters, cfg, zerolog.Nop())

	course := model.Course{Code: "BIO-1", Title: "Biology"}
	if err := stores.Courses.CreateCourse(ctx, &course); err != nil {
		t.Fatal(err)
	}
	e.section = model.Section{CourseID: course.ID, Title: "Cells"}
	if err := stores.Courses.CreateSection(ctx, &e.section); err != nil {
		t.Fatal(err)
	}
	e.page = model.Page{SectionID: e.section.ID, Title: "Intro"}
	if err := stores.Pages.Append(ctx, &e.page); err != nil {
		t.Fatal(err)
	}

	if _, err := e.auth.CreateUser(ctx, "teacher@school.test", "Tia", "secret123", model.RoleTeacher); err != nil {
		t.Fatal(err)
	}
	if _, err := e.auth.CreateUser(ctx, "student@school.test", "Sam", "secret123", model.RoleStudent); err != nil {
		t.Fatal(err)
	}
	if _, err := e.auth.CreateUser(ctx, "admin@school.test", "Ade", "secret123", model.RoleAdmin); err != nil {
		t.Fatal(err)
	}
	e.admin = e.login("admin@school.test")
	e.teacher = e.login("teacher@school.test")
	e.student = e.login("student@school.test")
	return e
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code   string            `json:"code"`
		Fields map[string]string `json:"fields"`
	} `json:"error"`
}

func (e *env) do(method, path, token string, body any) (int, envelope) {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			e.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		e.t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
	}
	return w.Code, env
}

func (e *env) login(email string) string {
	e.t.Helper()
	code, res := e.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": email, "password": "secret123"})
	if code != http.StatusOK {
		e.t.Fatalf("login %s: %d", email, code)
	}
	var out struct {
		Token string `json:"token"`
	}
	_ = json.Unmarshal(res.Data, &out)
	return out.Token
}

func (e *env) addBlock(kind model.BlockType) model.Block {
	e.t.Helper()
	code, res := e.do(http.MethodPost, "/api/v1/pages/"+e.page.ID.String()+"/blocks", e.teacher, gin.H{"type": kind})
	if code != http.StatusCreated {
		e.t.Fatalf("add %s block: %d %+v", kind, code, res.Error)
	}
	var out struct {
		Block model.Block `json:"block"`
	}
	_ = json.Unmarshal(res.Data, &out)
	return out.Block
}

func errCode(res envelope) string {
	if res.Error == nil {
		return ""
	}
	return res.Error.Code
}

func TestAuthErrors(t *testing.T) {
	e := setup(t)

	if code, res := e.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "teacher@school.test", "password": "wrong-one"}); code != http.StatusUnauthorized || errCode(res) != "INVALID_CREDENTIALS" {
		t.Fatalf("bad password: %d %s", code, errCode(res))
	}
	if code, res := e.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "not-an-email"}); code != http.StatusBadRequest || res.Error.Fields["email"] == "" {
		t.Fatalf("validation: %d %+v", code, res.Error)
	}
	if code, _ := e.do(http.MethodGet, "/api/v1/courses", "", nil); code != http.StatusUnauthorized {
		t.Fatalf("no token: %d", code)
	}

	code, res := e.do(http.MethodGet, "/api/v1/auth/me", e.student, nil)
	var me struct {
		User model.User `json:"user"`
	}
	_ = json.Unmarshal(res.Data, &me)
	if code != http.StatusOK || me.User.Role != model.RoleStudent || me.User.FullName != "Sam" {
		t.Fatalf("me: %d %+v", code, me.User)
	}
	if bytes.Contains(res.Data, []byte("password")) {
		t.Fatal("profile leaks password hash")
	}
}

func TestStudentsCannotAuthor(t *testing.T) {
	e := setup(t)
	code, res := e.do(http.MethodPost, "/api/v1/pages/"+e.page.ID.String()+"/blocks", e.student, gin.H{"type": "mcq"})
	if code != http.StatusForbidden || errCode(res) != "ROLE_FORBIDDEN" {
		t.Fatalf("student add block: %d %s", code, errCode(res))
	}
}

func TestSystemStatusIsAdminOnly(t *testing.T) {
	e := setup(t)
	if code, _ := e.do(http.MethodGet, "/api/v1/admin/system/status", e.teacher, nil); code != http.StatusForbidden {
		t.Fatalf("teacher: %d", code)
	}
	code, res := e.do(http.MethodGet, "/api/v1/admin/system/status", e.admin, nil)
	var status struct {
		Queue int64 `json:"queue_block_edits"`
	}
	_ = json.Unmarshal(res.Data, &status)
	if code != http.StatusOK || status.Queue != 4 {
		t.Fatalf("admin: %d %s", code, res.Data)
	}
}

func TestAuthoringAndReorder(t *testing.T) {
	e := setup(t)
	a := e.addBlock(model.BlockContent)
	b := e.addBlock(model.BlockMCQ)
	c := e.addBlock(model.BlockYesNo)
	if a.Position != 0 || b.Position != 1 || c.Position != 2 || a.Title != "New Block" {
		t.Fatalf("appended: %+v %+v %+v", a, b, c)
	}

	if code, res := e.do(http.MethodPost, "/api/v1/pages/"+e.page.ID.String()+"/blocks", e.teacher, gin.H{"type": "essay"}); code != http.StatusBadRequest || res.Error.Fields["type"] == "" {
		t.Fatalf("unknown type: %d %+v", code, res.Error)
	}

	path := "/api/v1/pages/" + e.page.ID.String() + "/blocks/reorder"
	code, res := e.do(http.MethodPost, path, e.teacher, gin.H{"source_index": 0, "destination_index": 2})
	if code != http.StatusOK {
		t.Fatalf("reorder: %d %+v", code, res.Error)
	}
	var out struct {
		Blocks []model.Block `json:"blocks"`
	}
	_ = json.Unmarshal(res.Data, &out)
	if out.Blocks[0].ID != b.ID || out.Blocks[1].ID != c.ID || out.Blocks[2].ID != a.ID {
		t.Fatalf("order = %v", out.Blocks)
	}
	last := e.hub.events[len(e.hub.events)-1]
	if last.Type != realtime.EventReordered || last.Order[2] != a.ID {
		t.Fatalf("event = %+v", last)
	}

	if code, res := e.do(http.MethodPost, path, e.teacher, gin.H{"source_index": 0, "destination_index": 3}); code != http.StatusBadRequest || errCode(res) != "INVALID_INDEX" {
		t.Fatalf("out of range: %d %s", code, errCode(res))
	}
	if code, res := e.do(http.MethodPost, path, e.teacher, gin.H{"source_index": 0}); code != http.StatusBadRequest || errCode(res) != "VALIDATION_ERROR" {
		t.Fatalf("missing index: %d %s", code, errCode(res))
	}

	code, res = e.do(http.MethodPost, "/api/v1/sections/"+e.section.ID.String()+"/pages", e.teacher, gin.H{"title": "Part 2"})
	var created struct {
		Page model.Page `json:"page"`
	}
	_ = json.Unmarshal(res.Data, &created)
	if code != http.StatusCreated || created.Page.Position != 1 {
		t.Fatalf("create page: %d %+v", code, created.Page)
	}
}

func TestUpdateBlockAndSubmit(t *testing.T) {
	e := setup(t)
	q := e.addBlock(model.BlockMCQ)

	code, res := e.do(http.MethodPut, "/api/v1/blocks/"+q.ID.String(), e.teacher, gin.H{
		"title":          "Largest organelle?",
		"content":        "",
		"options":        []string{"Ribosome", "Nucleus", "Lysosome"},
		"correct_answer": gin.H{"correct_index": 1},
		"max_points":     3,
	})
	if code != http.StatusOK {
		t.Fatalf("update: %d %+v", code, res.Error)
	}

	code, res = e.do(http.MethodPut, "/api/v1/blocks/"+q.ID.String(), e.teacher, gin.H{
		"title":          "x",
		"correct_answer": gin.H{"answer": "yes"},
	})
	if code != http.StatusBadRequest || errCode(res) != "INVALID_BLOCK_DATA" {
		t.Fatalf("mixed key: %d %s", code, errCode(res))
	}

	path := "/api/v1/blocks/" + q.ID.String() + "/submission"
	code, res = e.do(http.MethodPost, path, e.student, gin.H{"answer": 1})
	var out struct {
		Submission model.Submission `json:"submission"`
	}
	_ = json.Unmarshal(res.Data, &out)
	if code != http.StatusOK || out.Submission.Score == nil || *out.Submission.Score != 3 {
		t.Fatalf("submit: %d %+v", code, out.Submission)
	}

	if code, res := e.do(http.MethodPost, path, e.student, gin.H{"answer": 7}); code != http.StatusBadRequest || errCode(res) != "INVALID_ANSWER" {
		t.Fatalf("bad answer: %d %s", code, errCode(res))
	}

	code, res = e.do(http.MethodGet, "/api/v1/pages/"+e.page.ID.String()+"/blocks", e.student, nil)
	if code != http.StatusOK || bytes.Contains(res.Data, []byte("correct_index")) {
		t.Fatalf("student blocks leak key: %s", res.Data)
	}
	if !bytes.Contains(res.Data, []byte(`"score":3`)) {
		t.Fatalf("student blocks missing own submission: %s", res.Data)
	}
}

func TestWorkspaceAndNavigation(t *testing.T) {
	e := setup(t)
	second := model.Page{SectionID: e.section.ID, Title: "Next"}
	if err := e.stores.Pages.Append(context.Background(), &second); err != nil {
		t.Fatal(err)
	}

	code, res := e.do(http.MethodGet, "/api/v1/workspace", e.student, nil)
	var ws struct {
		Page    *model.Page `json:"page"`
		HasNext bool        `json:"has_next"`
	}
	_ = json.Unmarshal(res.Data, &ws)
	if code != http.StatusOK || ws.Page == nil || ws.Page.ID != e.page.ID || !ws.HasNext {
		t.Fatalf("workspace: %d %s", code, res.Data)
	}

	code, res = e.do(http.MethodGet, "/api/v1/navigation?page_id="+e.page.ID.String()+"&offset=1", e.student, nil)
	_ = json.Unmarshal(res.Data, &ws)
	if code != http.StatusOK || ws.Page.ID != second.ID || ws.HasNext {
		t.Fatalf("navigate: %d %s", code, res.Data)
	}

	if code, _ := e.do(http.MethodGet, "/api/v1/navigation?page_id=nope", e.student, nil); code != http.StatusBadRequest {
		t.Fatalf("malformed id: %d", code)
	}
}

func TestSubmitVideo(t *testing.T) {
	e := setup(t)
	v := e.addBlock(model.BlockVideo)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="video"; filename="answer.webm"`)
	h.Set("Content-Type", "video/webm")
	part, _ := mw.CreatePart(h)
	part.Write([]byte("webm-bytes"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/blocks/"+v.ID.String()+"/video", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+e.student)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("video: %d %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "http://files.test/uploads/videos/"+v.ID.String()+"/") {
		t.Fatalf("video url missing: %s", w.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/blocks/"+v.ID.String()+"/video", strings.NewReader("x"))
	req.Header.Set("Authorization", "Bearer "+e.student)
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing file: %d", w.Code)
	}
}

func TestPageStream(t *testing.T) {
	e := setup(t)
	q := e.addBlock(model.BlockYesNo)

	srv := httptest.NewServer(e.router)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/v1/pages/" + e.page.ID.String() + "/stream?token="

	conn, _, err := websocket.DefaultDialer.Dial(url+e.student, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	readEvent := func() map[string]any {
		t.Helper()
		var m map[string]any
		if err := conn.ReadJSON(&m); err != nil {
			t.Fatal(err)
		}
		return m
	}

	conn.WriteJSON(gin.H{"action": "ping"})
	if m := readEvent(); m["event"] != "pong" {
		t.Fatalf("ping => %v", m)
	}

	conn.WriteJSON(gin.H{"action": "submit", "block_id": q.ID, "answer": "yes"})
	if m := readEvent(); m["event"] != "submitted" {
		t.Fatalf("submit => %v", m)
	}

	conn.WriteJSON(gin.H{"action": "edit_block", "block_id": q.ID, "edit": gin.H{"title": "t"}})
	if m := readEvent(); m["event"] != "error" || m["code"] != "ROLE_FORBIDDEN" {
		t.Fatalf("student edit => %v", m)
	}

	code, _ := e.do(http.MethodPost, "/api/v1/pages/"+e.page.ID.String()+"/blocks", e.teacher, gin.H{"type": "content"})
	if code != http.StatusCreated {
		t.Fatalf("add block: %d", code)
	}
	if m := readEvent(); m["event"] != string(realtime.EventBlockAdded) {
		t.Fatalf("forwarded => %v", m)
	}

	if _, _, err := websocket.DefaultDialer.Dial(url+"bad", nil); err == nil {
		t.Fatal("bad token accepted")
	}
}

func TestStreamSubmitsShareTheSubmitLimit(t *testing.T) {
	submit := middleware.NewRateLimiter(&memCounter{}, "submit", 2, time.Hour, zerolog.Nop())
	e := setupLimited(t, Limiters{Submit: submit})
	q := e.addBlock(model.BlockYesNo)

	srv := httptest.NewServer(e.router)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/v1/pages/" + e.page.ID.String() + "/stream?token=" + e.student

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	events := []string{}
	for i := 0; i < 3; i++ {
		conn.WriteJSON(gin.H{"action": "submit", "block_id": q.ID, "answer": "no"})
		var m map[string]any
		if err := conn.ReadJSON(&m); err != nil {
			t.Fatal(err)
		}
		if m["event"] == "error" {
			events = append(events, m["code"].(string))
		} else {
			events = append(events, m["event"].(string))
		}
	}
	if events[0] != "submitted" || events[1] != "submitted" || events[2] != string(response.ErrRateLimitExceeded) {
		t.Fatalf("events = %v", events)
	}

	code, _ := e.do(http.MethodPost, "/api/v1/blocks/"+q.ID.String()+"/submission", e.student, gin.H{"answer": "no"})
	if code != http.StatusTooManyRequests {
		t.Fatalf("rest submit after stream budget: status = %d", code)
	}
}
