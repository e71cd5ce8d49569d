package orchestrator

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/parley/core/agents"
	"github.com/adalundhe/parley/core/events"
	"github.com/adalundhe/parley/core/intent"
	"github.com/adalundhe/parley/core/memory"
	"github.com/adalundhe/parley/core/skills"
	"github.com/adalundhe/parley/core/storage"
)

// stubAgent answers every turn with a fixed response.
type stubAgent struct {
	id   string
	resp agents.Response
	seen []*agents.Request
}

func (s *stubAgent) Descriptor() agents.Descriptor {
	return agents.Descriptor{ID: s.id, Name: "Stub " + s.id}
}
func (s *stubAgent) VoiceProfile() agents.VoiceProfile { return agents.VoiceProfile{Voice: "stub"} }
func (s *stubAgent) GenerateSuggestions(string, string) []string {
	return nil
}
func (s *stubAgent) ProcessMessage(_ context.Context, req *agents.Request) *agents.Response {
	s.seen = append(s.seen, req)
	resp := s.resp
	return &resp
}

func newTestOrchestrator(t *testing.T, reg *agents.Registry, bus *events.Bus) *Orchestrator {
	t.Helper()
	store := memory.NewStore(memory.Config{Backend: storage.NewMemoryBackend(), UserID: "u1"})
	t.Cleanup(func() { _ = store.Close() })
	o, err := New(Config{Agents: reg, Memory: store, Bus: bus})
	require.NoError(t, err)
	return o
}

func standard(t *testing.T) *Orchestrator {
	t.Helper()
	reg := skills.NewRegistry(skills.RegistryConfig{})
	reg.RegisterAll(skills.Builtins(nil)...)
	return newTestOrchestrator(t, StandardAgents(AgentsConfig{Skills: reg}), nil)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Config{Memory: memory.NewStore(memory.Config{})})
	assert.ErrorIs(t, err, ErrNoAgents)
	_, err = New(Config{Agents: agents.NewRegistry()})
	assert.ErrorIs(t, err, ErrNoMemory)
}

func TestRoutesByIntent(t *testing.T) {
	tests := []struct {
		text  string
		agent string
		label intent.Label
	}{
		{"what is the speed of light", agents.Research, intent.Research},
		{"remind me to call mom at 5pm", agents.Task, intent.Task},
		{"turn on the lights", agents.HomeAutomation, intent.HomeAutomation},
		{"hello there", agents.General, intent.General},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			env := standard(t).RouteMessage(context.Background(), tt.text, Session{})
			assert.False(t, env.Failed(), env.Error)
			assert.Equal(t, tt.agent, env.ActiveAgent)
			assert.Equal(t, tt.label, env.Intent)
			assert.NotEmpty(t, env.Text)
			assert.NotEmpty(t, env.VoiceProfile.Voice)
			assert.False(t, env.Timestamp.IsZero())
		})
	}
}

func TestRoutingIsIdempotent(t *testing.T) {
	o := standard(t)
	first := o.RouteMessage(context.Background(), "what is the speed of light", Session{})
	second := o.RouteMessage(context.Background(), "what is the speed of light", Session{})

	assert.Equal(t, first.ActiveAgent, second.ActiveAgent)
	assert.True(t, first.IsAgentSwitch)
	assert.False(t, second.IsAgentSwitch)
}

func TestConversationContextAdvances(t *testing.T) {
	o := standard(t)
	o.RouteMessage(context.Background(), "hello", Session{})
	c := o.Context()
	assert.Equal(t, 1, c.MessageCount)
	assert.False(t, c.ContinuingConversation)
	assert.Equal(t, "hello", c.LastQuery)

	o.RouteMessage(context.Background(), "how are you", Session{})
	c = o.Context()
	assert.Equal(t, 2, c.MessageCount)
	assert.True(t, c.ContinuingConversation)
}

func TestTopicStickiness(t *testing.T) {
	o := standard(t)

	env := o.RouteMessage(context.Background(), "remind me to call mom at 5pm", Session{})
	require.Equal(t, agents.Task, env.ActiveAgent)
	require.Len(t, env.Actions, 1)
	assert.Equal(t, "create_reminder", env.Actions[0].Type)
	assert.Equal(t, agents.Task, o.Context().CurrentTopic)

	env = o.RouteMessage(context.Background(), "and make it for friday", Session{})
	assert.Equal(t, agents.Task, env.ActiveAgent)
	assert.False(t, env.IsAgentSwitch)

	// a stronger keyword still wins
	env = o.RouteMessage(context.Background(), "turn off the fan", Session{})
	assert.Equal(t, agents.HomeAutomation, env.ActiveAgent)
	assert.True(t, env.IsAgentSwitch)
}

func TestStickinessNeedsActiveSpecialist(t *testing.T) {
	o := standard(t)
	o.RouteMessage(context.Background(), "remind me to stretch", Session{})
	require.True(t, o.SwitchAgent(agents.General))
	o.mu.Lock()
	o.conv.CurrentTopic = agents.Task
	o.mu.Unlock()

	env := o.RouteMessage(context.Background(), "and make it for friday", Session{})
	assert.Equal(t, agents.General, env.ActiveAgent)
}

func TestSwitchAgent(t *testing.T) {
	o := standard(t)

	assert.False(t, o.SwitchAgent("pirate"))
	assert.Equal(t, agents.General, o.ActiveAgent())

	o.RouteMessage(context.Background(), "hello", Session{})

	assert.True(t, o.SwitchAgent("home"))
	assert.Equal(t, agents.HomeAutomation, o.ActiveAgent())

	env := o.RouteMessage(context.Background(), "and the other one", Session{})
	assert.Equal(t, agents.HomeAutomation, env.ActiveAgent)
}

func TestResetConversation(t *testing.T) {
	o := standard(t)
	o.RouteMessage(context.Background(), "remind me to stretch", Session{})
	o.RouteMessage(context.Background(), "and again at noon", Session{})

	o.ResetConversation()
	c := o.Context()
	assert.Equal(t, agents.General, o.ActiveAgent())
	assert.Zero(t, c.MessageCount)
	assert.Empty(t, c.CurrentTopic)
	assert.Empty(t, c.LastQuery)
	assert.False(t, c.ContinuingConversation)

	env := o.RouteMessage(context.Background(), "and again at noon", Session{})
	assert.Equal(t, agents.General, env.ActiveAgent)
}

func TestMemoryUpdatesDeepMerge(t *testing.T) {
	stub := &stubAgent{id: agents.General}
	o := newTestOrchestrator(t, agents.NewRegistry(stub), nil)
	ctx := context.Background()

	stub.resp = agents.Response{Text: "ok", MemoryUpdates: map[string]any{
		"profile": map[string]any{"preferences": map[string]any{"theme": "dark"}},
	}}
	require.False(t, o.RouteMessage(ctx, "set dark mode", Session{}).Failed())

	stub.resp = agents.Response{Text: "ok", MemoryUpdates: map[string]any{
		"profile": map[string]any{"preferences": map[string]any{"volume": 0.5}},
	}}
	require.False(t, o.RouteMessage(ctx, "volume half", Session{}).Failed())

	doc, err := o.Memory().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dark", doc.Profile.Preferences["theme"])
	assert.Equal(t, 0.5, doc.Profile.Preferences["volume"])
	assert.Len(t, doc.Conversation.RecentInteractions, 2)
}

func TestResearchTopicsAccumulate(t *testing.T) {
	o := standard(t)
	ctx := context.Background()
	o.RouteMessage(ctx, "tell me about volcanoes", Session{})
	o.RouteMessage(ctx, "explain glaciers", Session{})
	o.RouteMessage(ctx, "tell me about volcanoes", Session{})

	am, err := o.Memory().GetAgentMemory(ctx, agents.Research)
	require.NoError(t, err)
	assert.Equal(t, []string{"volcanoes", "glaciers"}, am.KnownTopics)
}

func TestAgentReceivesTurnContext(t *testing.T) {
	general := &stubAgent{id: agents.General, resp: agents.Response{Text: "hi"}}
	task := &stubAgent{id: agents.Task, resp: agents.Response{Text: "sure", NewTopic: agents.Task}}
	o := newTestOrchestrator(t, agents.NewRegistry(general, task), nil)

	o.RouteMessage(context.Background(), "remind me to stretch", Session{})
	require.Len(t, task.seen, 1)
	req := task.seen[0]
	assert.Equal(t, agents.General, req.PreviousAgent)
	assert.True(t, req.IsAgentSwitch)
	assert.Equal(t, "u1", req.UserID)
	assert.NotNil(t, req.Memory)
}

func TestFallbackOnMissingAgent(t *testing.T) {
	general := &stubAgent{id: agents.General, resp: agents.Response{Text: "hi"}}
	o := newTestOrchestrator(t, agents.NewRegistry(general), nil)

	env := o.RouteMessage(context.Background(), "turn on the lights", Session{})
	assert.True(t, env.Failed())
	assert.Contains(t, env.Error, "agent not registered: home")
	assert.Equal(t, agents.General, env.ActiveAgent)
	assert.Equal(t, "stub", env.VoiceProfile.Voice)
	assert.Contains(t, env.Text, "I'm sorry")
	assert.Equal(t, agents.ApologySuggestions, env.SuggestedFollowups)
	assert.Equal(t, agents.General, o.ActiveAgent())
}

func TestFallbackOnCancel(t *testing.T) {
	o := standard(t)
	require.True(t, o.SwitchAgent(agents.Task))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	env := o.RouteMessage(ctx, "remind me to stretch", Session{})

	assert.True(t, env.Failed())
	assert.Equal(t, agents.General, env.ActiveAgent)
	assert.True(t, env.IsAgentSwitch)
	assert.Contains(t, env.Text, "That took too long.")
	assert.Empty(t, o.Context().CurrentTopic)
}

func TestPublishesConversationEvents(t *testing.T) {
	bus := events.NewBus(64, nil)
	var (
		mu   sync.Mutex
		seen []*events.Event
	)
	bus.SubscribeFunc("test", func(e *events.Event) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, e)
	})
	bus.Start()

	reg := skills.NewRegistry(skills.RegistryConfig{})
	reg.RegisterAll(skills.Builtins(nil)...)
	PublishSkillEvents(reg, bus)
	o := newTestOrchestrator(t, StandardAgents(AgentsConfig{Skills: reg}), bus)

	o.RouteMessage(context.Background(), "remind me to call mom at 5pm", Session{Channel: "voice"})
	bus.Close()

	mu.Lock()
	defer mu.Unlock()
	types := make([]events.EventType, len(seen))
	for i, e := range seen {
		types[i] = e.Type
		assert.Equal(t, "u1", e.UserID)
	}
	assert.Equal(t, []events.EventType{
		events.EventSkillExecuted,
		events.EventMessageRouted,
		events.EventAgentSwitched,
		events.EventActionRequested,
	}, types)
	assert.Equal(t, "create_reminder", seen[0].Data["skill_id"])
	assert.Equal(t, agents.Task, seen[0].AgentID)
	assert.Equal(t, "voice", seen[1].Data["channel"])
	assert.Equal(t, "create_reminder", seen[3].Data["action_type"])
}

func TestPublishesSkillFailedForUnavailableSkills(t *testing.T) {
	bus := events.NewBus(64, nil)
	var (
		mu   sync.Mutex
		seen []*events.Event
	)
	bus.SubscribeFunc("test", func(e *events.Event) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, e)
	}, events.EventSkillFailed)
	bus.Start()

	reg := skills.NewRegistry(skills.RegistryConfig{})
	reg.RegisterAll(skills.Builtins(nil)...)
	require.True(t, reg.SetEnabled("calculate", false))
	PublishSkillEvents(reg, bus)

	ctx := context.Background()
	reg.Execute(ctx, "calculate", skills.Params{"expression": "1 + 1"}, skills.ExecContext{UserID: "u1"})
	reg.Execute(ctx, "no_such_skill", nil, skills.ExecContext{UserID: "u1"})
	bus.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.Equal(t, "calculate", seen[0].Data["skill_id"])
	assert.Equal(t, "disabled", seen[0].Data["error_kind"])
	assert.Equal(t, "no_such_skill", seen[1].Data["skill_id"])
	assert.Equal(t, "not_found", seen[1].Data["error_kind"])
}

func TestPoolKeepsSessionsPerUser(t *testing.T) {
	pool, err := NewPool(PoolConfig{Agents: StandardAgents(AgentsConfig{}), MaxSessions: 2})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	alice, err := pool.Get("alice")
	require.NoError(t, err)
	again, err := pool.Get("alice")
	require.NoError(t, err)
	assert.Same(t, alice, again)

	guest, err := pool.Get("")
	require.NoError(t, err)
	assert.True(t, guest.Memory().IsTemporary())
	assert.Equal(t, memory.GuestUserID, guest.UserID())

	alice.RouteMessage(context.Background(), "remind me to stretch", Session{})
	assert.Equal(t, agents.General, guest.ActiveAgent())

	_, err = pool.Get("bob")
	require.NoError(t, err)
	assert.Equal(t, 2, pool.Len())

	// alice was least recently used and has been evicted; her document
	// survives in the backend
	fresh, err := pool.Get("alice")
	require.NoError(t, err)
	assert.NotSame(t, alice, fresh)
	log, err := fresh.Memory().RecentInteractions(context.Background())
	require.NoError(t, err)
	assert.Len(t, log, 1)

	assert.True(t, pool.Remove("alice"))
	assert.False(t, pool.Remove("alice"))
}

func TestPoolSeparatesNamedGuestFromAnonymous(t *testing.T) {
	pool, err := NewPool(PoolConfig{Agents: StandardAgents(AgentsConfig{})})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	anon, err := pool.Get("")
	require.NoError(t, err)
	named, err := pool.Get("guest")
	require.NoError(t, err)

	assert.NotSame(t, anon, named)
	assert.True(t, anon.Memory().IsTemporary())
	assert.False(t, named.Memory().IsTemporary())
	assert.Equal(t, 2, pool.Len())
}
