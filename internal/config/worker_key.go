package config

type WorkerKeyStruct struct {
	PersistResultsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistResultsQueue: "persist_results_queue",
}
