package domain

// CanJoin is the capacity gate. occupied counts enrollments plus live
// pending holds of other users. A nil result admits the caller.
//
// Duplicate checks (already enrolled, pending payment) belong to the
// caller and must run before any write.
func CanJoin(ev Event, occupied int) error {
	if ev.Status != EventOpen {
		return ErrEventNotOpen
	}
	if ev.MaxParticipants > 0 && occupied >= ev.MaxParticipants {
		return ErrEventFull
	}
	return nil
}
