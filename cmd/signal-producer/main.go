// Command signal-producer publishes invalidation signals to the Kafka topic
// the server consumes from. It exists for local testing: emit a
// profile-sync-complete or points-updated signal for a user and watch the
// server reload that user's session.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/IBM/sarama"
)

// SignalMessage mirrors the consumer's wire format.
type SignalMessage struct {
	Signal string `json:"signal"`
	UserID string `json:"user_id"`
}

func main() {
	// Command line flags
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "profile-signals", "Kafka topic")
	signalName := flag.String("signal", "profile-sync-complete", "Signal name (profile-sync-complete or points-updated)")
	userID := flag.String("user", "", "User ID the signal is scoped to (required)")
	count := flag.Int("count", 1, "Number of signals to send")
	interval := flag.Duration("interval", time.Second, "Delay between signals")
	flag.Parse()

	if *userID == "" {
		log.Fatal("-user is required")
	}
	if *signalName != "profile-sync-complete" && *signalName != "points-updated" {
		log.Fatalf("unknown signal %q", *signalName)
	}

	brokerList := strings.Split(*brokers, ",")

	// Configure Sarama producer
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}
	defer producer.Close()

	payload, err := json.Marshal(SignalMessage{
		Signal: *signalName,
		UserID: *userID,
	})
	if err != nil {
		log.Fatalf("Failed to marshal signal: %v", err)
	}

	for i := 0; i < *count; i++ {
		msg := &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.StringEncoder(*userID),
			Value: sarama.ByteEncoder(payload),
		}

		partition, offset, err := producer.SendMessage(msg)
		if err != nil {
			log.Fatalf("Failed to send signal: %v", err)
		}
		fmt.Printf("sent %s for %s (partition=%d offset=%d)\n", *signalName, *userID, partition, offset)

		if i < *count-1 {
			time.Sleep(*interval)
		}
	}
}
