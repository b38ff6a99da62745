package model

type Chain string

const (
	ChainSolana  Chain = "solana"
	ChainUnknown Chain = "unknown"
)

func (c Chain) String() string {
	return string(c)
}

// PromiseState is the lifecycle state of a promise. The only transition is
// pending -> evaluated; evaluated is terminal.
type PromiseState string

const (
	PromiseStatePending   PromiseState = "pending"
	PromiseStateEvaluated PromiseState = "evaluated"
)

func (s PromiseState) String() string {
	return string(s)
}

// LinkRelation qualifies a token-to-project link.
type LinkRelation string

const (
	LinkRelationPrimary LinkRelation = "primary"
)
