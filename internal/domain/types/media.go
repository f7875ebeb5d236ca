package types

// Constraints selects which devices GetUserMedia acquires.
type Constraints struct {
	Audio bool
	Video bool
}
