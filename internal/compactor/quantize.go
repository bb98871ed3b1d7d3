package compactor

import (
	"math"

	"NetDistill/internal/config"
	"NetDistill/internal/model"
)

// flagBinCeiling: flag counts quantize to linear bins 0, 1, 2, 3+.
const flagBinCeiling = 3

// QuantizeTokens converts the numeric features of a closed flow into compact
// integer tokens. It is deterministic and stateless: identical features
// always yield identical tokens. Counts and duration use log binning with a
// clamped maximum bin; flag counts use small linear bins.
func QuantizeTokens(counts model.Counts, durationS float64, flags model.FlagCounts, cfg *config.Pipeline) map[string]int {
	return map[string]int{
		"pkts_up_bin":  logBin(counts.PktsUp, cfg.CountLogBase, cfg.MaxBin),
		"pkts_dn_bin":  logBin(counts.PktsDn, cfg.CountLogBase, cfg.MaxBin),
		"bytes_up_bin": logBin(counts.BytesUp, cfg.CountLogBase, cfg.MaxBin),
		"bytes_dn_bin": logBin(counts.BytesDn, cfg.CountLogBase, cfg.MaxBin),
		"dur_bin":      logBinFloat(durationS, cfg.DurationLogBase, cfg.MaxBin),
		"syn_bin":      linearBin(flags.Syn),
		"ack_bin":      linearBin(flags.Ack),
		"rst_bin":      linearBin(flags.Rst),
		"fin_bin":      linearBin(flags.Fin),
	}
}

// logBin computes floor(log_base(1+v)), clamped to [0, max]. Monotonic and
// total: defined for zero and arbitrarily large values.
func logBin(v uint64, base float64, max int) int {
	return logBinFloat(float64(v), base, max)
}

func logBinFloat(x float64, base float64, max int) int {
	if x <= 0 {
		return 0
	}
	if base <= 1.0 {
		base = 2.0
	}
	bin := int(math.Floor(math.Log(1+x) / math.Log(base)))
	if bin < 0 {
		return 0
	}
	if bin > max {
		return max
	}
	return bin
}

// linearBin maps small counters to 0, 1, 2 or 3 (3 meaning "3 or more").
func linearBin(v uint64) int {
	if v > flagBinCeiling {
		return flagBinCeiling
	}
	return int(v)
}
