// Package notification carries storage change notifications between
// processes over Google Cloud Pub/Sub.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"tasktimer/pkg/kvstore"
)

// Service is a kvstore.Notifier backed by one Pub/Sub topic. Every process
// gets its own subscription so each one sees every change.
type Service struct {
	pubsubClient *pubsub.Client
	topic        *pubsub.Topic
	topicName    string
	subName      string
	ownsClient   bool

	local *kvstore.LocalNotifier

	// Deduplication: last revision delivered per origin and key
	mu           sync.Mutex
	lastRevision map[string]int64

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService connects to Pub/Sub. origin names this process's subscription.
func NewService(ctx context.Context, projectID, topicName, origin, credentialsFile string) (*Service, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	s := NewServiceWithClient(client, topicName, origin)
	s.ownsClient = true
	return s, nil
}

// NewServiceWithClient uses an existing client, which the caller closes.
func NewServiceWithClient(client *pubsub.Client, topicName, origin string) *Service {
	return &Service{
		pubsubClient: client,
		topic:        client.Topic(topicName),
		topicName:    topicName,
		subName:      topicName + "-" + origin,
		local:        kvstore.NewLocalNotifier(),
		lastRevision: map[string]int64{},
	}
}

// Start makes sure the topic and this process's subscription exist, then
// receives in the background until Close.
func (s *Service) Start(ctx context.Context) error {
	log.Printf("[PubSub] Starting notification service with topic: %s, subscription: %s", s.topicName, s.subName)

	if err := s.ensureTopic(ctx); err != nil {
		return err
	}

	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return fmt.Errorf("check subscription %s: %w", s.subName, err)
	}
	if !exists {
		sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
			Topic:            s.topic,
			AckDeadline:      10 * time.Second,
			ExpirationPolicy: 24 * time.Hour,
		})
		if err != nil {
			return fmt.Errorf("create subscription %s: %w", s.subName, err)
		}
		log.Printf("[PubSub] Created subscription: %s", s.subName)
	}

	recvCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		log.Printf("[PubSub] Listening for messages on subscription: %s", s.subName)
		err := sub.Receive(recvCtx, func(ctx context.Context, msg *pubsub.Message) {
			s.handleMessage(msg.Data)
			msg.Ack()
		})
		if err != nil {
			log.Printf("[PubSub] Error receiving messages: %v", err)
		}
	}()
	return nil
}

func (s *Service) ensureTopic(ctx context.Context) error {
	exists, err := s.topic.Exists(ctx)
	if err != nil {
		return fmt.Errorf("check topic %s: %w", s.topicName, err)
	}
	if exists {
		return nil
	}
	topic, err := s.pubsubClient.CreateTopic(ctx, s.topicName)
	if status.Code(err) == codes.AlreadyExists {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create topic %s: %w", s.topicName, err)
	}
	log.Printf("[PubSub] Created topic: %s", s.topicName)
	s.topic = topic
	return nil
}

// Publish announces change to every process, this one included.
func (s *Service) Publish(ctx context.Context, change kvstore.Change) error {
	data, err := json.Marshal(change)
	if err != nil {
		return err
	}

	if s.remember(change) {
		s.local.Dispatch(change)
	}

	result := s.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"origin": change.Origin,
			"key":    change.Key,
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish change of %q: %w", change.Key, err)
	}
	return nil
}

func (s *Service) Subscribe(fn func(kvstore.Change)) (cancel func()) {
	return s.local.Subscribe(fn)
}

// Close stops receiving and removes this process's subscription.
func (s *Service) Close(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
		if err := s.pubsubClient.Subscription(s.subName).Delete(ctx); err != nil {
			log.Printf("[PubSub] Failed to delete subscription %s: %v", s.subName, err)
		}
	}
	s.topic.Stop()
	if s.ownsClient {
		return s.pubsubClient.Close()
	}
	return nil
}

// handleMessage dispatches a received change unless it was already seen.
func (s *Service) handleMessage(data []byte) bool {
	var change kvstore.Change
	if err := json.Unmarshal(data, &change); err != nil {
		log.Printf("[PubSub] Failed to unmarshal change: %v", err)
		return false
	}
	if change.Key == "" {
		return false
	}
	if !s.remember(change) {
		return false
	}
	s.local.Dispatch(change)
	return true
}

// remember records change and reports whether it is newer than anything seen
// from the same origin for the same key.
func (s *Service) remember(change kvstore.Change) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := change.Origin + "/" + change.Key
	if last, ok := s.lastRevision[k]; ok && change.Revision <= last {
		return false
	}
	s.lastRevision[k] = change.Revision
	return true
}
