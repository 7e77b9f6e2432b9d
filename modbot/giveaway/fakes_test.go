package giveaway

import (
	"context"
	"sync"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sukoonbot/sukoon/modbot/database/models"
	"github.com/sukoonbot/sukoon/modbot/database/repositories"
	"github.com/sukoonbot/sukoon/modbot/gateway"
	"github.com/sukoonbot/sukoon/modbot/tasks"
)

const testBotID = snowflake.ID(999)

type fakeClient struct {
	mu      sync.Mutex
	members map[snowflake.ID]gateway.Member

	memberErr error
	sendErr   error

	nextMessageID snowflake.ID
	sentMessages  []gateway.MessageRef
	editedRefs    []gateway.MessageRef
	deletedRefs   []gateway.MessageRef
	clearedRefs   []gateway.MessageRef
	reactions     []string
	dms           []snowflake.ID
	memberLookups int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		members:       make(map[snowflake.ID]gateway.Member),
		nextMessageID: 5000,
	}
}

func (c *fakeClient) addMember(id snowflake.ID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.members[id] = gateway.Member{ID: id, Username: name}
}

func (c *fakeClient) BotUserID() snowflake.ID { return testBotID }

func (c *fakeClient) GetGuild(ctx context.Context, guildID snowflake.ID) (gateway.Guild, error) {
	return gateway.Guild{ID: guildID, Name: "test guild"}, nil
}

func (c *fakeClient) GetMember(ctx context.Context, guildID, userID snowflake.ID) (gateway.Member, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memberLookups++
	if c.memberErr != nil {
		return gateway.Member{}, c.memberErr
	}
	m, ok := c.members[userID]
	if !ok {
		return gateway.Member{}, gateway.ErrNotFound
	}
	return m, nil
}

func (c *fakeClient) ListMembers(ctx context.Context, guildID snowflake.ID, limit int) ([]gateway.Member, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]gateway.Member, 0, len(c.members))
	for _, m := range c.members {
		out = append(out, m)
	}
	return out, nil
}

func (c *fakeClient) GetRoles(ctx context.Context, guildID snowflake.ID) ([]gateway.Role, error) {
	return nil, nil
}

func (c *fakeClient) CreateRole(ctx context.Context, guildID snowflake.ID, name string) (gateway.Role, error) {
	return gateway.Role{}, nil
}

func (c *fakeClient) GrantRole(ctx context.Context, guildID, userID, roleID snowflake.ID, reason string) error {
	return nil
}

func (c *fakeClient) RevokeRole(ctx context.Context, guildID, userID, roleID snowflake.ID, reason string) error {
	return nil
}

func (c *fakeClient) GetChannels(ctx context.Context, guildID snowflake.ID) ([]gateway.Channel, error) {
	return nil, nil
}

func (c *fakeClient) CreateTextChannel(ctx context.Context, guildID snowflake.ID, name string, overwrites []discord.PermissionOverwrite) (gateway.Channel, error) {
	return gateway.Channel{}, nil
}

func (c *fakeClient) SetRoleOverwrite(ctx context.Context, channelID, roleID snowflake.ID, ow gateway.Overwrite) error {
	return nil
}

func (c *fakeClient) SendMessage(ctx context.Context, channelID snowflake.ID, msg discord.MessageCreate) (gateway.MessageRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return gateway.MessageRef{}, c.sendErr
	}
	c.nextMessageID++
	ref := gateway.MessageRef{ChannelID: channelID, MessageID: c.nextMessageID}
	c.sentMessages = append(c.sentMessages, ref)
	return ref, nil
}

func (c *fakeClient) EditMessage(ctx context.Context, ref gateway.MessageRef, update discord.MessageUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.editedRefs = append(c.editedRefs, ref)
	return nil
}

func (c *fakeClient) DeleteMessage(ctx context.Context, ref gateway.MessageRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletedRefs = append(c.deletedRefs, ref)
	return nil
}

func (c *fakeClient) AddReaction(ctx context.Context, ref gateway.MessageRef, emoji string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reactions = append(c.reactions, emoji)
	return nil
}

func (c *fakeClient) ClearReactions(ctx context.Context, ref gateway.MessageRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearedRefs = append(c.clearedRefs, ref)
	return nil
}

func (c *fakeClient) SendDirectMessage(ctx context.Context, userID snowflake.ID, msg discord.MessageCreate) (gateway.MessageRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dms = append(c.dms, userID)
	c.nextMessageID++
	return gateway.MessageRef{ChannelID: 1, MessageID: c.nextMessageID}, nil
}

func (c *fakeClient) DeleteDirectMessage(ctx context.Context, userID, messageID snowflake.ID) error {
	return nil
}

func (c *fakeClient) dmCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.dms)
}

type fakeGiveawayRepo struct {
	mu        sync.Mutex
	giveaways map[snowflake.ID]*models.Giveaway
}

func newFakeGiveawayRepo() *fakeGiveawayRepo {
	return &fakeGiveawayRepo{giveaways: make(map[snowflake.ID]*models.Giveaway)}
}

func (r *fakeGiveawayRepo) Create(ctx context.Context, g *models.Giveaway) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *g
	r.giveaways[g.MessageID] = &cp
	return nil
}

func (r *fakeGiveawayRepo) GetByMessageID(ctx context.Context, messageID snowflake.ID) (*models.Giveaway, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.giveaways[messageID]
	if !ok {
		return nil, repositories.ErrGiveawayNotFound
	}
	cp := *g
	return &cp, nil
}

func (r *fakeGiveawayRepo) GetDue(ctx context.Context, now time.Time) ([]*models.Giveaway, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []*models.Giveaway
	for _, g := range r.giveaways {
		if g.Status == models.GiveawayStatusActive && !now.Before(g.EndTime) {
			cp := *g
			due = append(due, &cp)
		}
	}
	return due, nil
}

func (r *fakeGiveawayRepo) GetActiveByGuild(ctx context.Context, guildID snowflake.ID) ([]*models.Giveaway, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Giveaway
	for _, g := range r.giveaways {
		if g.GuildID == guildID && g.Status == models.GiveawayStatusActive {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeGiveawayRepo) GetByGuild(ctx context.Context, guildID snowflake.ID, limit int) ([]*models.Giveaway, error) {
	return r.GetActiveByGuild(ctx, guildID)
}

func (r *fakeGiveawayRepo) MarkEnded(ctx context.Context, messageID snowflake.ID, winnerIDs []int64, participantCount int, by snowflake.ID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.giveaways[messageID]
	if !ok {
		return false, nil
	}
	if g.Status != models.GiveawayStatusActive && g.Status != models.GiveawayStatusError {
		return false, nil
	}
	now := time.Now()
	g.Status = models.GiveawayStatusEnded
	g.WinnerIDs = winnerIDs
	g.DrawnIDs = append(g.DrawnIDs, winnerIDs...)
	g.ParticipantCount = participantCount
	g.LastError = ""
	g.ResolvedBy = by
	g.ResolvedAt = &now
	return true, nil
}

func (r *fakeGiveawayRepo) MarkCancelled(ctx context.Context, messageID snowflake.ID, reason string, by snowflake.ID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.giveaways[messageID]
	if !ok {
		return false, nil
	}
	if g.Status != models.GiveawayStatusActive && g.Status != models.GiveawayStatusError {
		return false, nil
	}
	now := time.Now()
	g.Status = models.GiveawayStatusCancelled
	g.CancelReason = reason
	g.ResolvedBy = by
	g.ResolvedAt = &now
	return true, nil
}

func (r *fakeGiveawayRepo) MarkError(ctx context.Context, messageID snowflake.ID, detail string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.giveaways[messageID]; ok && g.Status == models.GiveawayStatusActive {
		g.Status = models.GiveawayStatusError
		g.LastError = detail
	}
	return nil
}

func (r *fakeGiveawayRepo) SetWinners(ctx context.Context, messageID snowflake.ID, winnerIDs []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.giveaways[messageID]
	if !ok {
		return repositories.ErrGiveawayNotFound
	}
	if g.Status != models.GiveawayStatusEnded {
		return repositories.ErrGiveawayInactive
	}
	g.WinnerIDs = winnerIDs
	g.DrawnIDs = append(g.DrawnIDs, winnerIDs...)
	return nil
}

func (r *fakeGiveawayRepo) CountByGuild(ctx context.Context, guildID snowflake.ID) (int, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	active, total := 0, 0
	for _, g := range r.giveaways {
		if g.GuildID != guildID {
			continue
		}
		total++
		if g.Status == models.GiveawayStatusActive {
			active++
		}
	}
	return active, total, nil
}

func (r *fakeGiveawayRepo) get(messageID snowflake.ID) *models.Giveaway {
	r.mu.Lock()
	defer r.mu.Unlock()
	g := r.giveaways[messageID]
	cp := *g
	return &cp
}

type fakeParticipantRepo struct {
	mu      sync.Mutex
	entries map[snowflake.ID][]*models.Participant
}

func newFakeParticipantRepo() *fakeParticipantRepo {
	return &fakeParticipantRepo{entries: make(map[snowflake.ID][]*models.Participant)}
}

func (r *fakeParticipantRepo) Add(ctx context.Context, p *models.Participant) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries[p.MessageID] {
		if e.UserID == p.UserID {
			return false, nil
		}
	}
	cp := *p
	cp.EnteredAt = time.Now()
	r.entries[p.MessageID] = append(r.entries[p.MessageID], &cp)
	return true, nil
}

func (r *fakeParticipantRepo) Remove(ctx context.Context, messageID, userID snowflake.ID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.entries[messageID]
	for i, e := range entries {
		if e.UserID == userID && !e.IsForced {
			r.entries[messageID] = append(entries[:i], entries[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeParticipantRepo) List(ctx context.Context, messageID snowflake.ID) ([]*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Participant, len(r.entries[messageID]))
	for i, e := range r.entries[messageID] {
		cp := *e
		out[i] = &cp
	}
	return out, nil
}

func (r *fakeParticipantRepo) Count(ctx context.Context, messageID snowflake.ID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries[messageID]), nil
}

func (r *fakeParticipantRepo) CountByGuild(ctx context.Context, guildID snowflake.ID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, entries := range r.entries {
		total += len(entries)
	}
	return total, nil
}

type fakeFillPlanRepo struct {
	mu     sync.Mutex
	nextID int64
	plans  map[snowflake.ID]*models.FillPlan
}

func newFakeFillPlanRepo() *fakeFillPlanRepo {
	return &fakeFillPlanRepo{plans: make(map[snowflake.ID]*models.FillPlan)}
}

func (r *fakeFillPlanRepo) Create(ctx context.Context, p *models.FillPlan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.plans[p.MessageID]; exists {
		return repositories.ErrFillPlanExists
	}
	r.nextID++
	p.ID = r.nextID
	cp := *p
	r.plans[p.MessageID] = &cp
	return nil
}

func (r *fakeFillPlanRepo) GetByMessageID(ctx context.Context, messageID snowflake.ID) (*models.FillPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[messageID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *fakeFillPlanRepo) GetActive(ctx context.Context) ([]*models.FillPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.FillPlan
	for _, p := range r.plans {
		if p.Status == models.FillPlanStatusActive && p.Remaining > 0 {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeFillPlanRepo) DecrementRemaining(ctx context.Context, id int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.plans {
		if p.ID == id {
			if p.Status != models.FillPlanStatusActive {
				return -1, nil
			}
			p.Remaining--
			return p.Remaining, nil
		}
	}
	return -1, nil
}

func (r *fakeFillPlanRepo) SetStatus(ctx context.Context, messageID snowflake.ID, status models.FillPlanStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[messageID]
	if !ok || p.Status != models.FillPlanStatusActive {
		return false, nil
	}
	p.Status = status
	return true, nil
}

// ctxCheckedFillPlanRepo fails writes once the context is cancelled, the way
// a real driver does.
type ctxCheckedFillPlanRepo struct {
	*fakeFillPlanRepo
}

func (r *ctxCheckedFillPlanRepo) SetStatus(ctx context.Context, messageID snowflake.ID, status models.FillPlanStatus) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return r.fakeFillPlanRepo.SetStatus(ctx, messageID, status)
}

func (r *fakeFillPlanRepo) get(messageID snowflake.ID) *models.FillPlan {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.plans[messageID]
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

type testEnv struct {
	manager      *Manager
	client       *fakeClient
	giveaways    *fakeGiveawayRepo
	participants *fakeParticipantRepo
	fillPlans    *fakeFillPlanRepo
	supervisor   *tasks.Supervisor
}

func newTestEnv(cfg Config) *testEnv {
	client := newFakeClient()
	giveaways := newFakeGiveawayRepo()
	participants := newFakeParticipantRepo()
	fillPlans := newFakeFillPlanRepo()
	supervisor := tasks.NewSupervisor()
	return &testEnv{
		manager:      NewManager(giveaways, participants, fillPlans, client, supervisor, cfg),
		client:       client,
		giveaways:    giveaways,
		participants: participants,
		fillPlans:    fillPlans,
		supervisor:   supervisor,
	}
}

func (env *testEnv) seedGiveaway(messageID snowflake.ID, winnerCount int, endIn time.Duration) *models.Giveaway {
	g := &models.Giveaway{
		MessageID:   messageID,
		ChannelID:   100,
		GuildID:     200,
		HostID:      300,
		Prize:       "prize",
		WinnerCount: winnerCount,
		Status:      models.GiveawayStatusActive,
		EndTime:     time.Now().Add(endIn),
	}
	_ = env.giveaways.Create(context.Background(), g)
	return g
}

func (env *testEnv) enter(messageID, userID snowflake.ID, name string) {
	env.client.addMember(userID, name)
	_, _ = env.participants.Add(context.Background(), &models.Participant{
		MessageID: messageID,
		UserID:    userID,
		Username:  name,
	})
}
