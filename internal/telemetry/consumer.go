package telemetry

// Update is what the consumer publishes for each decoded snapshot.
type Update struct {
	Record  Record
	Metrics Metrics
	Display Display
	Slots   []Slot
	// Rebuilt is true when this update created the core slots.
	Rebuilt bool
}

// Consumer decodes stats messages and publishes derived updates.
type Consumer struct {
	board   *SlotBoard
	publish func(Update)
}

// NewConsumer builds a consumer that calls publish for every good message.
func NewConsumer(publish func(Update)) *Consumer {
	return &Consumer{board: &SlotBoard{}, publish: publish}
}

// Board exposes the per-core slots.
func (c *Consumer) Board() *SlotBoard {
	return c.board
}

// HandleMessage is a stream.Hooks Message function. Malformed payloads
// return a decode error and publish nothing.
func (c *Consumer) HandleMessage(data []byte) error {
	rec, err := Decode(data)
	if err != nil {
		return err
	}
	metrics := Derive(rec)
	rebuilt := c.board.Apply(rec.PerCoreCPU)
	if c.publish != nil {
		c.publish(Update{
			Record:  rec,
			Metrics: metrics,
			Display: metrics.Display(),
			Slots:   c.board.Values(),
			Rebuilt: rebuilt,
		})
	}
	return nil
}
