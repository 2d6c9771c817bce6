package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/trunov/convo/internal/redisholder"
)

type Producer struct {
	r      *redisholder.Holder
	stream string
	maxLen int64
}

func NewProducer(r *redisholder.Holder, stream string, maxLen int64) *Producer {
	return &Producer{r: r, stream: stream, maxLen: maxLen}
}

// EnqueueConvert encodes job as JSON and appends it to the stream for the
// worker pool to pick up.
func (p *Producer) EnqueueConvert(ctx context.Context, job ConvertJob) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	return p.r.Get().XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"payload": string(raw),
			"attempt": 0,
		},
	}).Err()
}
