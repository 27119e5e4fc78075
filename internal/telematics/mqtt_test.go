package telematics

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/service"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct {
	err  error
	done bool
}

func (t *fakeToken) Wait() bool                     { return t.done }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return t.done }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if t.done {
		close(ch)
	}
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	sent  []published
	token *fakeToken
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.sent = append(c.sent, published{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return c.token
}

func TestTopic(t *testing.T) {
	p := newPublisher(&fakeClient{}, Config{TopicPrefix: "fleet/"})
	assert.Equal(t, "fleet/vehicles/9/status", p.Topic(9))

	p = newPublisher(&fakeClient{}, Config{})
	assert.Equal(t, "vehicles/9/status", p.Topic(9))
}

func TestPublishVehicleStatus(t *testing.T) {
	client := &fakeClient{token: &fakeToken{done: true}}
	p := newPublisher(client, Config{TopicPrefix: "fleet", QoS: 1})

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	err := p.PublishVehicleStatus(context.Background(), service.VehicleChange{
		VehicleID:   9,
		PlateNumber: "A12345",
		From:        domain.VehicleStatusReserved,
		To:          domain.VehicleStatusRented,
		OrderID:     3,
		At:          at,
	})
	require.NoError(t, err)
	require.Len(t, client.sent, 1)

	msg := client.sent[0]
	assert.Equal(t, "fleet/vehicles/9/status", msg.topic)
	assert.Equal(t, byte(1), msg.qos)
	assert.True(t, msg.retained)

	var body statusMessage
	require.NoError(t, json.Unmarshal(msg.payload, &body))
	assert.Equal(t, "RESERVED", body.From)
	assert.Equal(t, "RENTED", body.To)
	assert.Equal(t, 3, body.ToCode)
	assert.Equal(t, int64(3), body.OrderID)
}

func TestPublishVehicleStatusErrors(t *testing.T) {
	t.Run("broker error", func(t *testing.T) {
		p := newPublisher(&fakeClient{token: &fakeToken{done: true, err: errors.New("not connected")}}, Config{})
		assert.EqualError(t, p.PublishVehicleStatus(context.Background(), service.VehicleChange{VehicleID: 1}), "not connected")
	})

	t.Run("timeout", func(t *testing.T) {
		p := newPublisher(&fakeClient{token: &fakeToken{done: false}}, Config{PublishTimeout: time.Millisecond})
		assert.ErrorContains(t, p.PublishVehicleStatus(context.Background(), service.VehicleChange{VehicleID: 1}), "timed out")
	})
}
