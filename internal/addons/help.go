package addons

import (
	"context"
	"strings"
	"sync"

	"github.com/tbourn/go-chat-bot/internal/command"
	"github.com/tbourn/go-chat-bot/internal/search"
)

// Help answers "help {topic}" with the commands closest to the topic that
// the asking user may run.
type Help struct {
	deps Deps

	once  sync.Once
	index search.Index
	roles map[string][]string
	usage map[string]string
}

// NewHelp returns the help addon. The index is built on first use so that
// every initiator is registered by then.
func NewHelp(d Deps) *Help { return &Help{deps: d} }

func (h *Help) build() {
	var docs []search.Doc
	h.roles = make(map[string][]string)
	h.usage = make(map[string]string)
	for _, in := range h.deps.Router.Initiators() {
		if in.Schema == nil {
			continue
		}
		h.roles[in.Name] = in.Roles
		h.usage[in.Name] = in.Schema.Exemplar()
		docs = append(docs, search.Doc{
			Key:  in.Name,
			Text: strings.Join([]string{in.Schema.Keyword(), in.Schema.Example(), in.Schema.Description()}, " "),
		})
	}
	h.index = search.NewIndex(docs, search.WithStopwords([]string{"a", "an", "the", "for", "on", "or", "to"}))
}

func (h *Help) allowed(userID, name string) bool {
	roles := h.roles[name]
	if len(roles) == 0 {
		return true
	}
	u, err := h.deps.Roster.User(userID)
	return err == nil && u.HasRole(roles...)
}

// Handle is the command.Handler for help.
func (h *Help) Handle(ctx context.Context, cmd *command.Command) *command.Response {
	h.once.Do(h.build)
	ud := cmd.UserDestination()
	topic, err := cmd.Target("topic")
	if err != nil {
		return command.Error(err)
	}

	res := h.index.TopKWhere(topic, 3, func(name string) bool { return h.allowed(ud.UserID, name) })
	if len(res) == 0 {
		h.deps.reply(h.deps.Reply.SendError(ctx, ud, "I don't know anything about "+topic), ud, "help")
		return command.OK()
	}
	lines := make([]string, 0, len(res))
	for _, r := range res {
		lines = append(lines, "*"+h.usage[r.Key]+"*")
	}
	h.deps.reply(h.deps.Reply.SendAddressed(ctx, ud, "try "+strings.Join(lines, " or ")), ud, "help")
	return command.OK()
}

// Topics lists every command name in the index.
func (h *Help) Topics() []string {
	h.once.Do(h.build)
	return h.index.Keys()
}
