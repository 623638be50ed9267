package sink

import (
	"context"
	"encoding/json"
	"time"

	"github.com/matst80/wslink/internal/obs"
	"github.com/matst80/wslink/internal/proto"
	"github.com/redis/go-redis/v9"
)

// ChannelPrefix namespaces pub/sub channels: wslink:<event>.
const ChannelPrefix = "wslink:"

// Redis publishes a proto.Event JSON envelope on ChannelPrefix+event.
type Redis struct {
	client  redis.Cmdable
	source  string
	timeout time.Duration
	now     func() time.Time
}

// NewRedis publishes through client; source identifies this instance in the envelope.
func NewRedis(client redis.Cmdable, source string) *Redis {
	return &Redis{client: client, source: source, timeout: 2 * time.Second, now: time.Now}
}

func (r *Redis) Publish(event, payload string) {
	b, err := json.Marshal(proto.Event{Name: event, Payload: payload, Source: r.source, At: r.now().UTC()})
	if err != nil {
		obs.SinkErrorsTotal.WithLabelValues("redis").Inc()
		obs.Error("sink.redis.marshal", obs.Fields{"err": err.Error()})
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.client.Publish(ctx, ChannelPrefix+event, b).Err(); err != nil {
		obs.SinkErrorsTotal.WithLabelValues("redis").Inc()
		obs.Error("sink.redis.publish", obs.Fields{"err": err.Error(), "event": event})
	}
}
