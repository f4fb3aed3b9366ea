package punch

const (
	TypeIn      Type = "IN"
	TypeOut     Type = "OUT"
	TypeOutside Type = "OUTSIDE"
	TypeReturn  Type = "RETURN"
)

const (
	StateNone    State = "NONE"
	StateIn      State = "IN"
	StateOut     State = "OUT"
	StateOutside State = "OUTSIDE"
	StateReturn  State = "RETURN"
)

const DefaultMaxOutsideCycles = 3
