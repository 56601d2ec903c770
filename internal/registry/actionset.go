package registry

import (
	"github.com/rs/zerolog"

	"voiced/pkg/types"
)

// ActionSet is the ordered list of weak action bindings behind one
// intent key. Bindings are handles, not owning references: removing a
// skill must be observable here without the set keeping the skill's
// objects alive.
type ActionSet struct {
	refs []Handle
}

func NewActionSet() *ActionSet { return &ActionSet{} }

func (as *ActionSet) Add(h Handle) { as.refs = append(as.refs, h) }

func (as *ActionSet) Len() int { return len(as.refs) }

// CallAll fans the request out to every live binding and reports how
// many invocations failed. A dead handle is a logged condition, not a
// crash; a failing action is logged and does not stop the remaining
// bindings from running.
func (as *ActionSet) CallAll(store *Store[Action], ctx *types.RequestContext, lg zerolog.Logger) ([]types.Answer, int) {
	answers := make([]types.Answer, 0, len(as.refs))
	failed := 0
	for _, h := range as.refs {
		act, ok := store.Resolve(h)
		if !ok {
			lg.Warn().Str("intent", ctx.Intent).Msg("skipping dead action binding")
			continue
		}
		ans, err := act.Call(ctx)
		if err != nil {
			lg.Error().Err(err).Str("action", act.Name()).Str("intent", ctx.Intent).Msg("action failed")
			failed++
			continue
		}
		answers = append(answers, ans)
	}
	return answers, failed
}
