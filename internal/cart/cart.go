// Package cart holds shopping carts in memory.
//
// A cart is per user and short-lived: it is never written to the database.
// Checkout (service.OrderService) turns it into an Order and clears it.
//
// Every mutation publishes a snapshot of the item list to subscribers. A
// subscriber always receives the current list first, then each newer list;
// a slow subscriber skips intermediate lists but never misses the latest.
package cart

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/sakif/vinyl-storefront/internal/model"
)

// Item is one catalog item in the cart with its quantity.
// The vinyl's fields are copied when the item is added.
type Item struct {
	VinylID  int64           `json:"vinylId"`
	Titulo   string          `json:"titulo"`
	Artista  string          `json:"artista"`
	Imagen   string          `json:"imagen"`
	Precio   decimal.Decimal `json:"precio"`
	Quantity int             `json:"quantity"`
}

// Subtotal is Precio × Quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.Precio.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is safe for concurrent use.
type Cart struct {
	mu      sync.Mutex
	items   []Item
	subs    map[int]chan []Item
	nextSub int
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{subs: make(map[int]chan []Item)}
}

// Add puts one copy of v in the cart. Adding an item already present
// increments its quantity instead of adding a second line.
func (c *Cart) Add(v model.Vinyl) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].VinylID == v.ID {
			c.items[i].Quantity++
			c.publishLocked()
			return
		}
	}
	c.items = append(c.items, Item{
		VinylID:  v.ID,
		Titulo:   v.Titulo,
		Artista:  v.Artista,
		Imagen:   v.Imagen,
		Precio:   v.Precio,
		Quantity: 1,
	})
	c.publishLocked()
}

// SetQuantity sets the quantity of an item already in the cart. A quantity
// of zero or less removes it. It reports whether the item was present.
func (c *Cart) SetQuantity(vinylID int64, quantity int) bool {
	if quantity <= 0 {
		return c.Remove(vinylID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].VinylID == vinylID {
			c.items[i].Quantity = quantity
			c.publishLocked()
			return true
		}
	}
	return false
}

// Remove drops the item entirely. It reports whether the item was present.
func (c *Cart) Remove(vinylID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].VinylID == vinylID {
			c.items = append(c.items[:i], c.items[i+1:]...)
			c.publishLocked()
			return true
		}
	}
	return false
}

func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = nil
	c.publishLocked()
}

// Items returns a copy of the cart's lines in insertion order.
func (c *Cart) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Total is the sum of every line's subtotal.
func (c *Cart) Total() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := decimal.Zero
	for _, it := range c.items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// Count is the number of copies in the cart, not the number of lines.
func (c *Cart) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

// Subscribe returns a channel of item-list snapshots, starting with the
// current one. cancel unsubscribes and closes the channel.
func (c *Cart) Subscribe() (<-chan []Item, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan []Item, 1)
	ch <- c.snapshotLocked()
	c.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (c *Cart) snapshotLocked() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Cart) publishLocked() {
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- c.snapshotLocked()
	}
}

// Store keeps one cart per user.
type Store struct {
	mu    sync.Mutex
	carts map[int64]*Cart
}

func NewStore() *Store {
	return &Store{carts: make(map[int64]*Cart)}
}

// For returns the user's cart, creating an empty one on first use.
func (s *Store) For(userID int64) *Cart {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts[userID]
	if !ok {
		c = New()
		s.carts[userID] = c
	}
	return c
}

// Drop forgets the user's cart, e.g. when the account is deleted.
func (s *Store) Drop(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, userID)
}
