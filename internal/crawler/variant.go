package crawler

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// Variant selects the training task flavor. Variants differ only in
// initial target placement and whether the commanded walking speed is
// resampled at every episode start.
type Variant int

const (
	// VariantFixedTarget spawns the target co-located with the agent.
	VariantFixedTarget Variant = iota
	// VariantFixedTargetVariableSpeed additionally resamples the
	// walking speed each episode.
	VariantFixedTargetVariableSpeed
	// VariantFarTarget spawns the target far ahead along the agent's
	// local forward axis.
	VariantFarTarget
	// VariantFarTargetVariableSpeed combines the far target with
	// per-episode speed resampling.
	VariantFarTargetVariableSpeed
)

var variantNames = map[Variant]string{
	VariantFixedTarget:              "fixed-target",
	VariantFixedTargetVariableSpeed: "fixed-target-variable-speed",
	VariantFarTarget:                "far-target",
	VariantFarTargetVariableSpeed:   "far-target-variable-speed",
}

func (v Variant) String() string {
	if name, ok := variantNames[v]; ok {
		return name
	}
	return fmt.Sprintf("variant(%d)", int(v))
}

func ParseVariant(s string) (Variant, error) {
	normalized := strings.TrimSpace(strings.ToLower(s))
	for v, name := range variantNames {
		if normalized == name {
			return v, nil
		}
	}
	return 0, fmt.Errorf("unsupported crawler variant: %s", s)
}

// resetPlan is the variant resolved into plain reset parameters once at
// initialization, keeping the variant switch out of every episode reset.
type resetPlan struct {
	targetOffset   mgl64.Vec3
	randomizeSpeed bool
}

func (v Variant) plan() (resetPlan, error) {
	switch v {
	case VariantFixedTarget:
		return resetPlan{}, nil
	case VariantFixedTargetVariableSpeed:
		return resetPlan{randomizeSpeed: true}, nil
	case VariantFarTarget:
		return resetPlan{targetOffset: mgl64.Vec3{0, 0, FarTargetDistance}}, nil
	case VariantFarTargetVariableSpeed:
		return resetPlan{targetOffset: mgl64.Vec3{0, 0, FarTargetDistance}, randomizeSpeed: true}, nil
	default:
		return resetPlan{}, fmt.Errorf("unsupported crawler variant: %d", int(v))
	}
}
