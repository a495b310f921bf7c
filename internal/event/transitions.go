package event

// Trigger names an action applied to an event.
type Trigger string

// Trigger constants.
const (
	TriggerActivate         Trigger = "activate"
	TriggerPaymentRequired  Trigger = "payment_required"
	TriggerPaymentConfirmed Trigger = "payment_confirmed"
	TriggerComplete         Trigger = "complete"
	TriggerCancel           Trigger = "cancel"
	TriggerRefund           Trigger = "refund"
	TriggerExpire           Trigger = "expire"
)

type transitionKey struct {
	from    Status
	trigger Trigger
}

// transition holds the target status. resolve, when set, picks the
// target from the event instead of the fixed To.
type transition struct {
	To      Status
	resolve func(*Event) Status
}

// transitionTable is the complete set of legal transitions. Anything not
// in this table is rejected; there is no branching fallback.
var transitionTable = map[transitionKey]transition{
	{StatusReserved, TriggerActivate}: {To: StatusInProgress},

	{StatusInProgress, TriggerPaymentRequired}: {To: StatusAwaitingPayment},

	// Payment confirmation ends a vending transaction outright; every
	// other type continues until the goods change hands.
	{StatusAwaitingPayment, TriggerPaymentConfirmed}: {resolve: func(e *Event) Status {
		if e.EventType == TypeVending {
			return StatusFinished
		}
		return StatusTransactionInProgress
	}},

	{StatusInProgress, TriggerComplete}:             {To: StatusFinished},
	{StatusAwaitingPayment, TriggerComplete}:        {To: StatusFinished},
	{StatusAwaitingServicePickup, TriggerComplete}:  {To: StatusFinished},
	{StatusAwaitingServiceDropoff, TriggerComplete}: {To: StatusFinished},
	{StatusAwaitingUserPickup, TriggerComplete}:     {To: StatusFinished},
	{StatusTransactionInProgress, TriggerComplete}:  {To: StatusFinished},

	{StatusReserved, TriggerCancel}:   {To: StatusCanceled},
	{StatusInProgress, TriggerCancel}: {To: StatusCanceled},

	{StatusFinished, TriggerRefund}:        {To: StatusRefunded},
	{StatusAwaitingPayment, TriggerRefund}: {To: StatusRefunded},
	// Late refund adjustment on an already refunded event.
	{StatusRefunded, TriggerRefund}: {To: StatusRefunded},

	{StatusInProgress, TriggerExpire}:             {To: StatusExpired},
	{StatusAwaitingPayment, TriggerExpire}:        {To: StatusExpired},
	{StatusAwaitingServicePickup, TriggerExpire}:  {To: StatusExpired},
	{StatusAwaitingServiceDropoff, TriggerExpire}: {To: StatusExpired},
	{StatusAwaitingUserPickup, TriggerExpire}:     {To: StatusExpired},

	// Service flow: activation hands the device to a courier before the
	// user collects.
	{StatusInProgress, TriggerServicePickup}:             {To: StatusAwaitingServicePickup},
	{StatusAwaitingServicePickup, TriggerServiceDropoff}: {To: StatusAwaitingServiceDropoff},
	{StatusAwaitingServiceDropoff, TriggerUserPickup}:    {To: StatusAwaitingUserPickup},
	{StatusInProgress, TriggerUserPickup}:                {To: StatusAwaitingUserPickup},
}

// Service and delivery hand-off triggers.
const (
	TriggerServicePickup  Trigger = "service_pickup"
	TriggerServiceDropoff Trigger = "service_dropoff"
	TriggerUserPickup     Trigger = "user_pickup"
)

// NextStatus resolves the target status for applying trigger to the
// event's current status. Returns *InvalidTransitionError when the
// combination is not in the table.
func NextStatus(e *Event, trigger Trigger) (Status, error) {
	t, ok := transitionTable[transitionKey{e.Status, trigger}]
	if !ok {
		return "", &InvalidTransitionError{EventID: e.ID, From: e.Status, Trigger: trigger}
	}
	if t.resolve != nil {
		return t.resolve(e), nil
	}
	return t.To, nil
}

// CanApply reports whether trigger is legal from the event's current status.
func CanApply(e *Event, trigger Trigger) bool {
	_, ok := transitionTable[transitionKey{e.Status, trigger}]
	return ok
}
