package logging

import "sync"

const subscriberBuffer = 64

// Broker fans log entries out to SSE subscribers. Deployment subscribers
// only receive entries carrying their deployment ID; general subscribers
// receive everything.
type Broker struct {
	mu          sync.RWMutex
	deployments map[string][]chan LogEntry
	general     []chan LogEntry
}

func NewBroker() *Broker {
	return &Broker{
		deployments: make(map[string][]chan LogEntry),
	}
}

// Publish delivers an entry to all matching subscribers. Slow subscribers
// are skipped rather than blocking the publisher.
func (b *Broker) Publish(entry LogEntry) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if entry.DeploymentID != "" {
		for _, ch := range b.deployments[entry.DeploymentID] {
			select {
			case ch <- entry:
			default:
			}
		}
	}
	for _, ch := range b.general {
		select {
		case ch <- entry:
		default:
		}
	}
}

func (b *Broker) SubscribeDeployment(deploymentID string) chan LogEntry {
	ch := make(chan LogEntry, subscriberBuffer)
	b.mu.Lock()
	b.deployments[deploymentID] = append(b.deployments[deploymentID], ch)
	b.mu.Unlock()
	return ch
}

func (b *Broker) UnsubscribeDeployment(deploymentID string, ch chan LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.deployments[deploymentID]
	for i, sub := range subs {
		if sub == ch {
			b.deployments[deploymentID] = append(subs[:i], subs[i+1:]...)
			close(sub)
			break
		}
	}
	if len(b.deployments[deploymentID]) == 0 {
		delete(b.deployments, deploymentID)
	}
}

func (b *Broker) Subscribe() chan LogEntry {
	ch := make(chan LogEntry, subscriberBuffer)
	b.mu.Lock()
	b.general = append(b.general, ch)
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(ch chan LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.general {
		if sub == ch {
			b.general = append(b.general[:i], b.general[i+1:]...)
			close(sub)
			break
		}
	}
}
