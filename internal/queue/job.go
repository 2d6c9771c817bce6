package queue

// ConvertJob is what we push to Redis Streams.
// It carries no bytes; workers fetch the source by ObjectKey.
type ConvertJob struct {
	JobID       string `json:"job_id"`
	ObjectKey   string `json:"object_key"`
	ContentType string `json:"content_type"`
	Filename    string `json:"filename"`
	Target      string `json:"target"`               // "png" | "jpg" | "webp" | ...
	ResultKey   string `json:"result_key,omitempty"` // optional override (defaults to ObjectKey + "." + Target)
}

func (j ConvertJob) resultKey() string {
	if j.ResultKey != "" {
		return j.ResultKey
	}
	return j.ObjectKey + "." + j.Target
}
