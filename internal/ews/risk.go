package ews

import "github.com/Sapang3/vision-crowd/internal/contracts"

// PhysicalRisk is the DANP-weighted sum of the five physical indices,
// clamped to [0,1]. Pure function of the index set and the weight vector.
func PhysicalRisk(ix contracts.IndexSet, w Weights) float64 {
	return clamp01(w.CAI*ix.CAI + w.CDI*ix.CDI + w.THI*ix.THI + w.TI*ix.TI + w.EI*ix.EI)
}

// BehavioralIntention blends the TPB sub-indices (attitude, subjective
// norm, perceived control) into a single readiness score, clamped to [0,1].
func BehavioralIntention(ix contracts.IndexSet, w BehaviorWeights) float64 {
	return clamp01(w.Attitude*ix.ATI + w.SubjectiveNorm*ix.SNI + w.PerceivedControl*ix.PCI)
}

// ExtendedRisk mixes the physical composite with the behavioral intention
// using the configured blend, clamped to [0,1].
func ExtendedRisk(physical, intention float64, b Blend) float64 {
	return clamp01(b.Physical*clamp01(physical) + b.Behavioral*clamp01(intention))
}
