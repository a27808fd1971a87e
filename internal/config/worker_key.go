package config

type WorkerKeyStruct struct {
	PersistViolationsQueue string
	PersistAttemptsQueue   string
}

var WorkerKey = &WorkerKeyStruct{
	PersistViolationsQueue: "persist_violations_queue",
	PersistAttemptsQueue:   "persist_attempts_queue",
}
