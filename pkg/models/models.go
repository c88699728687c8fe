package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Wire keys of a spell record file. The French names are the on-disk contract.
const (
	KeyName             = "Nom"
	KeyOriginalName     = "Nom original"
	KeyTier             = "Niveau"
	KeySchool           = "École"
	KeyCastingTime      = "Temps d'incantation"
	KeyRange            = "Portée"
	KeyTarget           = "Cible"
	KeyComponents       = "Composantes"
	KeyDuration         = "Durée"
	KeyConcentration    = "Concentration"
	KeyRitual           = "Rituel"
	KeyRitualCastTime   = "Temps du rituel"
	KeySaveOrAttack     = "Type d'attaque / sauvegarde"
	KeyShortEffect      = "Effet synthétique"
	KeyFullDescription  = "Description complète"
	KeyHigherTierEffect = "Effet en surcaste"

	// Keys of the placeholder file saved when generation returned unusable JSON.
	KeyGenerationError = "erreur"
	KeyRawContent      = "contenu_brut"
)

var (
	// ErrTierRange is returned when a record declares a tier outside [0,9].
	ErrTierRange = errors.New("tier out of range")
	// ErrGenerationRecord is returned for a placeholder left by a failed generation.
	ErrGenerationRecord = errors.New("record holds a failed generation")
)

// Tier is a spell power level, 0 (cantrip) through 9.
type Tier int

const (
	TierCantrip Tier = 0
	TierMax     Tier = 9
	// TierUnknown marks a record whose tier is absent or unreadable.
	TierUnknown Tier = -1
)

// Known reports whether the tier was present in the source record.
func (t Tier) Known() bool {
	return t >= TierCantrip && t <= TierMax
}

func (t Tier) String() string {
	if !t.Known() {
		return "-"
	}
	return strconv.Itoa(int(t))
}

// Spell is one structured spell record. Values are immutable once loaded;
// empty strings stand for absent or null source values.
type Spell struct {
	Name             string
	OriginalName     string
	Tier             Tier
	School           string
	CastingTime      string
	Range            string
	Target           string
	Components       string
	Duration         string
	Concentration    bool
	Ritual           bool
	RitualCastTime   string
	SaveOrAttack     string
	ShortEffect      string
	FullDescription  string
	HigherTierEffect string
}

// UnmarshalJSON decodes the French wire format, tolerating loosely typed values
// (numeric strings for the tier, "oui"/"yes"/"true" for flags, lists for components).
func (s *Spell) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("spell record is null")
	}
	if _, failed := raw[KeyGenerationError]; failed && raw[KeyName] == nil {
		return ErrGenerationRecord
	}

	tier, err := parseTier(raw[KeyTier])
	if err != nil {
		return err
	}

	*s = Spell{
		Name:             text(raw[KeyName]),
		OriginalName:     text(raw[KeyOriginalName]),
		Tier:             tier,
		School:           text(raw[KeySchool]),
		CastingTime:      text(raw[KeyCastingTime]),
		Range:            text(raw[KeyRange]),
		Target:           text(raw[KeyTarget]),
		Components:       text(raw[KeyComponents]),
		Duration:         text(raw[KeyDuration]),
		Concentration:    flag(raw[KeyConcentration]),
		Ritual:           flag(raw[KeyRitual]),
		RitualCastTime:   text(raw[KeyRitualCastTime]),
		SaveOrAttack:     text(raw[KeySaveOrAttack]),
		ShortEffect:      text(raw[KeyShortEffect]),
		FullDescription:  text(raw[KeyFullDescription]),
		HigherTierEffect: text(raw[KeyHigherTierEffect]),
	}
	return nil
}

// MarshalJSON writes the record back in the French wire format.
func (s Spell) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		KeyName:             s.Name,
		KeyOriginalName:     s.OriginalName,
		KeySchool:           s.School,
		KeyCastingTime:      s.CastingTime,
		KeyRange:            s.Range,
		KeyTarget:           s.Target,
		KeyComponents:       s.Components,
		KeyDuration:         s.Duration,
		KeyConcentration:    s.Concentration,
		KeyRitual:           s.Ritual,
		KeyRitualCastTime:   nullable(s.RitualCastTime),
		KeySaveOrAttack:     s.SaveOrAttack,
		KeyShortEffect:      s.ShortEffect,
		KeyFullDescription:  s.FullDescription,
		KeyHigherTierEffect: nullable(s.HigherTierEffect),
	}
	if s.Tier.Known() {
		out[KeyTier] = int(s.Tier)
	}
	return json.Marshal(out)
}

func parseTier(v any) (Tier, error) {
	var n int
	switch t := v.(type) {
	case nil:
		return TierUnknown, nil
	case float64:
		if t != float64(int(t)) {
			return TierUnknown, nil
		}
		n = int(t)
	case string:
		trimmed := strings.TrimSpace(t)
		parsed, err := strconv.Atoi(trimmed)
		if err != nil {
			lower := strings.ToLower(trimmed)
			if strings.Contains(lower, "tour de magie") || strings.Contains(lower, "cantrip") {
				return TierCantrip, nil
			}
			return TierUnknown, nil
		}
		n = parsed
	default:
		return TierUnknown, nil
	}
	if n < int(TierCantrip) || n > int(TierMax) {
		return TierUnknown, fmt.Errorf("%w: %d", ErrTierRange, n)
	}
	return Tier(n), nil
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return formatNumber(t)
	case bool:
		if t {
			return "Oui"
		}
		return "Non"
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := text(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(t)
	}
}

func flag(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "oui", "yes", "true", "vrai", "1":
			return true
		}
	}
	return false
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
