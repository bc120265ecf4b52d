package card

// DeckVersion identifies the suit/rank tables below. Any change to them changes every
// shuffle downstream, so bump it together with the tables.
const DeckVersion = 1

// DeckSize is the number of cards produced by NewDeck.
const DeckSize = 54

type suit struct {
	id    uint8
	ranks []uint8
}

// order matters: NewDeck is the starting point of the shuffle
var suits = []suit{
	{SuitWhot, []uint8{20, 20, 20, 20, 20}},
	{SuitCircle, []uint8{1, 2, 3, 4, 5, 7, 8, 10, 11, 12, 13, 14}},
	{SuitTriangle, []uint8{1, 2, 3, 4, 5, 7, 8, 10, 11, 12, 13, 14}},
	{SuitCross, []uint8{1, 2, 3, 5, 7, 10, 11, 13, 14}},
	{SuitSquare, []uint8{1, 2, 3, 5, 7, 10, 11, 13, 14}},
	{SuitStar, []uint8{1, 2, 3, 4, 5, 7, 8}},
}

// NewDeck builds the canonical deck, suit-major, ranks in declared order.
func NewDeck() []Card {
	deck := make([]Card, 0, DeckSize)
	for _, s := range suits {
		for _, r := range s.ranks {
			deck = append(deck, New(s.id, r))
		}
	}
	return deck
}

// Count returns a multiset view of cards, used to check that no card was created or lost.
func Count(cards []Card) map[Card]int {
	m := make(map[Card]int, len(cards))
	for _, c := range cards {
		m[c]++
	}
	return m
}
