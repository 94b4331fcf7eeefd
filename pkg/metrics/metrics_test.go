package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersExposedOnHandler(t *testing.T) {
	m := New()
	m.MessagesSent.Inc()
	m.PushesDelivered.WithLabelValues("newMessage").Add(2)
	m.OnlineUsers.Set(3)

	if got := testutil.ToFloat64(m.PushesDelivered.WithLabelValues("newMessage")); got != 2 {
		t.Fatalf("delivered = %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		"chat_messages_sent_total 1",
		`chat_push_delivered_total{event="newMessage"} 2`,
		"chat_online_users 3",
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
