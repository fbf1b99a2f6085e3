// Package gate decides which capabilities an identity may invoke.
//
// The gate is a pure function of (identity, catalog): no caching, no side
// effects. It is evaluated fresh every turn so role or tier changes take
// effect immediately, and evaluated a second time right before execution as
// defense in depth against a stale manifest or a non-compliant engine.
package gate

import (
	catalogx "github.com/finsight-labs/finsight/agent/catalog"
	contractx "github.com/finsight-labs/finsight/agent/contract"
)

type Gate struct {
	catalog *catalogx.Catalog
}

func New(catalog *catalogx.Catalog) *Gate {
	if catalog == nil {
		panic("gate: nil catalog")
	}
	return &Gate{catalog: catalog}
}

// Allowed computes the manifest for one turn: every descriptor the identity
// may invoke, in catalog registration order. Premium subsumes normal for the
// same role; executives receive the base and executive sets regardless of
// any tier value on the identity.
func (g *Gate) Allowed(identity contractx.IdentityContext) []contractx.CapabilityDescriptor {
	all := g.catalog.Descriptors()
	out := make([]contractx.CapabilityDescriptor, 0, len(all))
	for _, d := range all {
		if descriptorAllowed(identity, d) {
			out = append(out, d)
		}
	}
	return out
}

// Permits reports whether the identity may invoke one named capability.
// A name absent from the catalog is an ErrUnknownCapability, distinct from a
// plain permission denial.
func (g *Gate) Permits(identity contractx.IdentityContext, capability string) (bool, error) {
	d, err := g.catalog.Lookup(capability)
	if err != nil {
		return false, err
	}
	return descriptorAllowed(identity, d), nil
}

func descriptorAllowed(identity contractx.IdentityContext, d contractx.CapabilityDescriptor) bool {
	switch identity.Role {
	case contractx.RoleExecutive:
		// Tier is ignored for executives, including bogus role/tier combos.
		if d.MinRole == contractx.RoleExecutive {
			return true
		}
		return d.MinTier == contractx.TierNone
	case contractx.RoleClient:
		if d.MinRole != contractx.RoleClient {
			return false
		}
		switch d.MinTier {
		case contractx.TierNone:
			return true
		case contractx.TierNormal:
			return identity.Tier == contractx.TierNormal || identity.Tier == contractx.TierPremium
		case contractx.TierPremium:
			return identity.Tier == contractx.TierPremium
		default:
			return false
		}
	default:
		return false
	}
}
