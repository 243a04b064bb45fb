package config

type WorkerKeyStruct struct {
	BlockEditQueue string
}

var WorkerKey = &WorkerKeyStruct{
	BlockEditQueue: "persist_block_edits_queue",
}
