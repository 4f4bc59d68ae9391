package common

// LevelInfo is the aggregate view of one price level: the price and the
// sum of remaining quantities resting there.
type LevelInfo struct {
	Price    Price
	Quantity Quantity
}

// BookLevels is a consistent snapshot of both sides of the book. Bids are
// ordered best (highest) first, asks best (lowest) first.
type BookLevels struct {
	Bids []LevelInfo
	Asks []LevelInfo
}
