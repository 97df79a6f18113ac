package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"factorylens/logger"
	"factorylens/models"
)

// Record kinds carried in the record_type header
const (
	RecordQC       = "qc_record"
	RecordOEE      = "oee_sample"
	RecordDowntime = "downtime_event"
	RecordEnergy   = "energy_sample"
	RecordAlert    = "alert"
)

// Topics names the topics the producer writes to
type Topics struct {
	KPI    string
	Alert  string
	Record string
}

// Producer publishes snapshots, alerts and dataset records
type Producer struct {
	producer sarama.SyncProducer
	topics   Topics
	log      *logger.Logger
}

// NewConfig returns the producer settings: all replicas acknowledge,
// three retries 100ms apart.
func NewConfig(clientID string) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Retry.Backoff = 100 * time.Millisecond
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	return cfg
}

// NewProducer connects a synchronous producer to brokers
func NewProducer(brokers []string, clientID string, topics Topics, log *logger.Logger) (*Producer, error) {
	sp, err := sarama.NewSyncProducer(brokers, NewConfig(clientID))
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}
	return NewProducerWithClient(sp, topics, log), nil
}

// NewProducerWithClient wraps an existing sarama producer
func NewProducerWithClient(sp sarama.SyncProducer, topics Topics, log *logger.Logger) *Producer {
	if log == nil {
		log = logger.NewNop()
	}
	return &Producer{producer: sp, topics: topics, log: log}
}

func (p *Producer) send(topic, key, msgType string, data interface{}, headers ...sarama.RecordHeader) error {
	value, err := json.Marshal(models.StreamMessage{Type: msgType, Data: data, Timestamp: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", msgType, err)
	}

	msg := &sarama.ProducerMessage{
		Topic:   topic,
		Key:     sarama.StringEncoder(key),
		Value:   sarama.ByteEncoder(value),
		Headers: headers,
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to deliver %s to %s: %w", msgType, topic, err)
	}
	p.log.Debug("Message delivered", "topic", topic, "partition", partition, "offset", offset, "type", msgType)
	return nil
}

func header(k, v string) sarama.RecordHeader {
	return sarama.RecordHeader{Key: []byte(k), Value: []byte(v)}
}

// PublishSnapshot sends a dashboard snapshot keyed by factory id
func (p *Producer) PublishSnapshot(factoryID string, snapshot interface{}) error {
	return p.send(p.topics.KPI, factoryID, models.MessageSnapshot, snapshot, header("factory_id", factoryID))
}

// PublishAlert sends a monitor alert keyed by factory id
func (p *Producer) PublishAlert(alert models.Alert) error {
	return p.send(p.topics.Alert, alert.FactoryID, models.MessageAlert, alert,
		header("factory_id", alert.FactoryID),
		header("severity", string(alert.Severity)),
	)
}

// PublishRecord sends one dataset record to the record topic
func (p *Producer) PublishRecord(r models.Record) error {
	kind := RecordType(r)
	return p.send(p.topics.Record, r.FactoryRef(), models.MessageRecord, r,
		header("record_type", kind),
		header("factory_id", r.FactoryRef()),
	)
}

// RecordType names the kind of a dataset record
func RecordType(r models.Record) string {
	switch r.(type) {
	case models.QCRecord, *models.QCRecord:
		return RecordQC
	case models.OeeSample, *models.OeeSample:
		return RecordOEE
	case models.DowntimeEvent, *models.DowntimeEvent:
		return RecordDowntime
	case models.EnergySample, *models.EnergySample:
		return RecordEnergy
	case models.Alert, *models.Alert:
		return RecordAlert
	default:
		return "unknown"
	}
}

// Close flushes and closes the underlying producer
func (p *Producer) Close() error {
	p.log.Info("Closing Kafka producer")
	return p.producer.Close()
}
