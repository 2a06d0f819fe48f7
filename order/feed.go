package order

import (
	"github.com/chochsentinel/sentinel/model"
)

// DataFeed carries order updates and errors for one symbol.
type DataFeed struct {
	Data chan model.Order
	Err  chan error
}

// FeedConsumer receives one order update.
type FeedConsumer func(order model.Order)

// Feed is a per-symbol pub/sub of order updates: the Manager publishes,
// arbitrary components subscribe to react to fills and cancellations.
type Feed struct {
	OrderFeeds            map[string]*DataFeed
	SubscriptionsBySymbol map[string][]Subscription
}

// Subscription pairs a consumer with whether it only wants brand-new orders.
type Subscription struct {
	onlyNewOrder bool
	consumer     FeedConsumer
}

// NewOrderFeed returns a ready-to-use, empty Feed.
func NewOrderFeed() *Feed {
	return &Feed{
		OrderFeeds:            make(map[string]*DataFeed),
		SubscriptionsBySymbol: make(map[string][]Subscription),
	}
}

// Subscribe registers consumer for every order update on pair.
func (d *Feed) Subscribe(pair string, consumer FeedConsumer, onlyNewOrder bool) {
	if _, ok := d.OrderFeeds[pair]; !ok {
		d.OrderFeeds[pair] = &DataFeed{
			Data: make(chan model.Order),
			Err:  make(chan error),
		}
	}
	d.SubscriptionsBySymbol[pair] = append(d.SubscriptionsBySymbol[pair], Subscription{
		onlyNewOrder: onlyNewOrder,
		consumer:     consumer,
	})
}

// Publish sends order to its pair's channel, where Start fans it out to
// every subscriber. The second parameter is reserved for a future
// new-vs-update distinction; it is not yet consulted.
func (d *Feed) Publish(order model.Order, _ bool) {
	if _, ok := d.OrderFeeds[order.Pair]; ok {
		d.OrderFeeds[order.Pair].Data <- order
	}
}

// Start spawns one goroutine per subscribed pair that fans each published
// order out to every subscriber of that pair.
func (d *Feed) Start() {
	for pair := range d.OrderFeeds {
		go func(pair string, feed *DataFeed) {
			for order := range feed.Data {
				for _, subscription := range d.SubscriptionsBySymbol[pair] {
					subscription.consumer(order)
				}
			}
		}(pair, d.OrderFeeds[pair])
	}
}
