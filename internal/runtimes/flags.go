package runtimes

import (
	"github.com/stevehuang0115/agentmux/internal/config"
	"github.com/stevehuang0115/agentmux/internal/debug"
)

// ResolveRuntimeFlags computes the launch flags contributed by the member's
// effective skill set: role defaults, unioned with overrides, minus
// exclusions. Only skills declaring this runtime contribute; unknown skill
// IDs are logged and skipped (ConfigMissing is non-fatal, the runtime
// launches with whatever resolved).
func ResolveRuntimeFlags(role string, overrides, exclusions []string, rt Type) []string {
	var flags []string
	seen := make(map[string]struct{})

	for _, id := range config.EffectiveSkillIDs(role, overrides, exclusions) {
		sk := config.SkillByID(id)
		if sk == nil {
			debug.LogKV("runtimes", "unknown skill, skipping", "skill", id, "role", role)
			continue
		}
		if sk.Runtime != string(rt) {
			continue
		}
		for _, f := range sk.Flags {
			if _, dup := seen[f]; dup {
				continue
			}
			seen[f] = struct{}{}
			flags = append(flags, f)
		}
	}
	return flags
}
