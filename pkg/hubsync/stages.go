package hubsync

// Stage is a HubSpot deal pipeline stage (the default sales pipeline
// vocabulary).
type Stage string

const (
	StageAppointmentScheduled  Stage = "appointmentscheduled"
	StageQualifiedToBuy        Stage = "qualifiedtobuy"
	StagePresentationScheduled Stage = "presentationscheduled"
	StageDecisionMakerBoughtIn Stage = "decisionmakerboughtin"
	StageContractSent          Stage = "contractsent"
	StageClosedWon             Stage = "closedwon"
	StageClosedLost            Stage = "closedlost"
)

// Phase is an AMANDA proposal lifecycle phase.
type Phase string

const (
	PhaseQualification Phase = "qualification"
	PhaseGate1         Phase = "gate_1"
	PhaseCapture       Phase = "capture"
	PhaseDevelopment   Phase = "development"
	PhaseReview        Phase = "review"
	PhaseSubmitted     Phase = "submitted"
	PhaseArchived      Phase = "archived"
)

// stageToPhase maps HubSpot stages to AMANDA phases. The mapping is total
// and injective, so the reverse table below is derived without conflicts.
var stageToPhase = map[Stage]Phase{
	StageAppointmentScheduled:  PhaseQualification,
	StageQualifiedToBuy:        PhaseGate1,
	StagePresentationScheduled: PhaseCapture,
	StageDecisionMakerBoughtIn: PhaseDevelopment,
	StageContractSent:          PhaseReview,
	StageClosedWon:             PhaseSubmitted,
	StageClosedLost:            PhaseArchived,
}

var phaseToStage = func() map[Phase]Stage {
	m := make(map[Phase]Stage, len(stageToPhase))
	for s, p := range stageToPhase {
		m[p] = s
	}
	return m
}()

// PhaseForStage looks up the AMANDA phase for a HubSpot stage. ok is false
// for stage values outside the default pipeline; callers must treat those
// as opaque pass-through rather than failing, so unexpected pipeline
// configurations do not break synchronization.
func PhaseForStage(s Stage) (Phase, bool) {
	p, ok := stageToPhase[s]
	return p, ok
}

// StageForPhase is the reverse lookup, defined for every phase that can be
// pushed outward.
func StageForPhase(p Phase) (Stage, bool) {
	s, ok := phaseToStage[p]
	return s, ok
}
