package account

import (
	"github.com/smallbiznis/premium/internal/account/domain"
	"github.com/smallbiznis/premium/internal/reference"
	"go.uber.org/fx"
)

var Module = fx.Module("account",
	fx.Invoke(RegisterKinds),
)

// RegisterKinds makes users and organizations resolvable as feature owners
// and assignment sources.
func RegisterKinds(resolver *reference.Resolver) {
	resolver.Register(reference.NewKind[domain.User](domain.KindUser, ""))
	resolver.Register(reference.NewKind[domain.Organization](domain.KindOrganization, ""))
}
