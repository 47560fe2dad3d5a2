package domain

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID     string
	IsOperator bool
}

// Operator returns an operator actor, used by tooling and tests.
func Operator(userID string) Actor {
	return Actor{UserID: userID, IsOperator: true}
}

// BuyerActor returns a non-privileged actor.
func BuyerActor(userID string) Actor {
	return Actor{UserID: userID}
}
