package nats

import (
	"context"
	"errors"
	"testing"

	"github.com/abgdnv/verdant/pkg/messaging"
	"github.com/abgdnv/verdant/pkg/messaging/events"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockJetStream mocks Publish; the rest of jetstream.JetStream is unused.
type mockJetStream struct {
	jetstream.JetStream
	mock.Mock
}

func (m *mockJetStream) Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	args := m.Called(ctx, subject, data, len(opts))
	ack, _ := args.Get(0).(*jetstream.PubAck)
	return ack, args.Error(1)
}

type plainEvent struct{}

func (plainEvent) Subject() string          { return "storefront.test" }
func (plainEvent) Payload() ([]byte, error) { return []byte(`{}`), nil }

func TestJetStreamPublisher_Publish(t *testing.T) {
	checkout := events.CartCheckedOutEvent{OrderID: uuid.New(), SessionID: "s1", TotalItems: 1}
	payload, err := checkout.Payload()
	require.NoError(t, err)

	testCases := []struct {
		name     string
		event    messaging.Event
		subject  string
		data     []byte
		wantOpts int
	}{
		{"checkout carries its order id", checkout, messaging.CheckoutsSubject, payload, 1},
		{"event without id", plainEvent{}, "storefront.test", []byte(`{}`), 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			js := new(mockJetStream)
			js.On("Publish", mock.Anything, tc.subject, tc.data, tc.wantOpts).Return(&jetstream.PubAck{Stream: "STOREFRONT"}, nil)

			// when
			err := NewJetStreamPublisher(js).Publish(context.Background(), tc.event)

			// then
			require.NoError(t, err)
			js.AssertExpectations(t)
		})
	}
}

func TestJetStreamPublisher_PublishError(t *testing.T) {
	// given
	js := new(mockJetStream)
	js.On("Publish", mock.Anything, "storefront.test", mock.Anything, 0).Return(nil, errors.New("nats: no responders available"))

	// when
	err := NewJetStreamPublisher(js).Publish(context.Background(), plainEvent{})

	// then
	assert.ErrorContains(t, err, "failed to publish to storefront.test")
}

func TestCartCheckedOutEvent_MessageID(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, id.String(), events.CartCheckedOutEvent{OrderID: id}.MessageID())
}
