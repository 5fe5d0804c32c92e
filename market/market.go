package market

// Direction is the side of a trade or order.
type Direction int

const (
	Buy Direction = iota
	Sell
)

func (d Direction) String() string {
	switch d {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	}
	return "UNKNOWN"
}

// Opposite returns the other side, used when a protective position is
// opened against the primary book.
func (d Direction) Opposite() Direction {
	if d == Buy {
		return Sell
	}
	return Buy
}
