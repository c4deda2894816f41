package config

type WorkerKeyStruct struct {
	GradebookPushQueue string
}

var WorkerKey = &WorkerKeyStruct{
	GradebookPushQueue: "gradebook_push_queue",
}
