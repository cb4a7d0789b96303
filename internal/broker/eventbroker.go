package broker

type publication[TID comparable, TPayload any] struct {
	id      TID
	payload TPayload
}

type subscription[TID comparable, TPayload any] struct {
	id      TID
	channel chan TPayload
}

// EventBroker fans out payloads to every subscriber of an ID. Unlike a
// single-consumer handoff, each subscriber gets its own buffered channel and
// late subscribers simply miss earlier payloads; the poll snapshot is the
// resync path for anything missed.
//
// The broker is an actor: all bookkeeping happens in the Start goroutine, so
// no locks are needed around the subscriber lists.
type EventBroker[TID comparable, TPayload any] struct {
	stopChannel        chan struct{}
	publishChannel     chan publication[TID, TPayload]
	subscribeChannel   chan subscription[TID, TPayload]
	unsubscribeChannel chan subscription[TID, TPayload]
}

// subscriberBuffer absorbs bursts between reads of a slow subscriber.
const subscriberBuffer = 64

// NewEventBroker creates a broker. Call Start in a goroutine and Stop to shut
// it down.
func NewEventBroker[TID comparable, TPayload any]() *EventBroker[TID, TPayload] {
	return &EventBroker[TID, TPayload]{
		stopChannel:        make(chan struct{}),
		publishChannel:     make(chan publication[TID, TPayload]),
		subscribeChannel:   make(chan subscription[TID, TPayload]),
		unsubscribeChannel: make(chan subscription[TID, TPayload]),
	}
}

// Start listens for publish, subscribe, and unsubscribe requests. It blocks
// until Stop is called, so it should run in its own goroutine.
func (b *EventBroker[TID, TPayload]) Start() {
	subscribers := map[TID][]chan TPayload{}
	for {
		select {
		case <-b.stopChannel:
			for _, channels := range subscribers {
				for _, ch := range channels {
					close(ch)
				}
			}
			return

		case sub := <-b.subscribeChannel:
			subscribers[sub.id] = append(subscribers[sub.id], sub.channel)

		case sub := <-b.unsubscribeChannel:
			channels := subscribers[sub.id]
			for i, ch := range channels {
				if ch == sub.channel {
					subscribers[sub.id] = append(channels[:i], channels[i+1:]...)
					close(ch)
					break
				}
			}
			if len(subscribers[sub.id]) == 0 {
				delete(subscribers, sub.id)
			}

		case pub := <-b.publishChannel:
			for _, ch := range subscribers[pub.id] {
				// A subscriber that has stopped draining loses the payload
				// rather than wedging the broker for everyone else.
				select {
				case ch <- pub.payload:
				default:
				}
			}
		}
	}
}

// Stop shuts down the broker and closes all subscriber channels.
func (b *EventBroker[TID, TPayload]) Stop() {
	close(b.stopChannel)
}

// Subscribe registers a subscriber for the given ID. The returned cancel
// function unregisters it and closes the channel.
func (b *EventBroker[TID, TPayload]) Subscribe(id TID) (<-chan TPayload, func()) {
	channel := make(chan TPayload, subscriberBuffer)
	sub := subscription[TID, TPayload]{id: id, channel: channel}
	select {
	case b.subscribeChannel <- sub:
	case <-b.stopChannel:
		close(channel)
		return channel, func() {}
	}
	cancel := func() {
		select {
		case b.unsubscribeChannel <- sub:
		case <-b.stopChannel:
		}
	}
	return channel, cancel
}

// Publish delivers the payload to every current subscriber of the ID.
func (b *EventBroker[TID, TPayload]) Publish(id TID, payload TPayload) {
	select {
	case b.publishChannel <- publication[TID, TPayload]{id: id, payload: payload}:
	case <-b.stopChannel:
	}
}
