package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Spins up a mosquitto broker and round-trips a committed plan.
func TestPlanPublisherAgainstBroker(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping broker integration test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	req := testcontainers.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		Files: []testcontainers.ContainerFile{{
			Reader:            strings.NewReader("listener 1883\nallow_anonymous true\n"),
			ContainerFilePath: "/mosquitto/config/mosquitto.conf",
			FileMode:          0o644,
		}},
		WaitingFor: wait.ForListeningPort("1883/tcp"),
	}
	broker, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start broker: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(broker); err != nil {
			t.Logf("terminate broker: %v", err)
		}
	})

	host, err := broker.Host(ctx)
	if err != nil {
		t.Fatalf("broker host: %v", err)
	}
	port, err := broker.MappedPort(ctx, "1883")
	if err != nil {
		t.Fatalf("broker port: %v", err)
	}
	url := fmt.Sprintf("tcp://%s:%s", host, port.Port())

	received := make(chan []byte, 1)
	sub := paho.NewClient(paho.NewClientOptions().AddBroker(url).SetClientID("sub"))
	if token := sub.Connect(); token.Wait() && token.Error() != nil {
		t.Fatalf("subscriber connect: %v", token.Error())
	}
	defer sub.Disconnect(250)
	token := sub.Subscribe("darp/plan", 1, func(_ paho.Client, msg paho.Message) {
		select {
		case received <- msg.Payload():
		default:
		}
	})
	if token.Wait() && token.Error() != nil {
		t.Fatalf("subscribe: %v", token.Error())
	}

	pub, err := NewPlanPublisher(Config{Broker: url, ClientID: "pub", Topic: "darp/plan", QoS: 1})
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	defer pub.Close()

	plan := testPlan(t)
	if err := pub.Commit(plan); err != nil {
		t.Fatalf("commit: %v", err)
	}

	select {
	case payload := <-received:
		var decoded planMessage
		if err := json.Unmarshal(payload, &decoded); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if decoded.Version != plan.Version {
			t.Fatalf("version %q, want %q", decoded.Version, plan.Version)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("no plan received from the broker")
	}
}
