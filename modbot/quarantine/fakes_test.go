package quarantine

import (
	"context"
	"sync"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sukoonbot/sukoon/modbot/database/models"
	"github.com/sukoonbot/sukoon/modbot/database/repositories"
	"github.com/sukoonbot/sukoon/modbot/database/transcripts"
	"github.com/sukoonbot/sukoon/modbot/gateway"
	"github.com/sukoonbot/sukoon/modbot/notify"
	"github.com/sukoonbot/sukoon/modbot/tasks"
)

const (
	testBotID   = snowflake.ID(999)
	testGuildID = snowflake.ID(200)
	testOwnerID = snowflake.ID(10)
)

type overwriteCall struct {
	ChannelID snowflake.ID
	RoleID    snowflake.ID
	Overwrite gateway.Overwrite
}

type roleCall struct {
	UserID snowflake.ID
	RoleID snowflake.ID
}

type fakeClient struct {
	mu       sync.Mutex
	members  map[snowflake.ID]gateway.Member
	roles    []gateway.Role
	channels []gateway.Channel

	grantErrs     map[snowflake.ID]error // keyed by role id
	revokeErrs    map[snowflake.ID]error
	overwriteErrs map[snowflake.ID][]error // per channel, consumed per call
	dmErr         error

	grants      []roleCall
	revokes     []roleCall
	overwrites  []overwriteCall
	dms         []snowflake.ID
	dmDeletes   []snowflake.ID
	sentTo      []snowflake.ID
	deletedMsgs []gateway.MessageRef

	nextID snowflake.ID
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		members:       make(map[snowflake.ID]gateway.Member),
		grantErrs:     make(map[snowflake.ID]error),
		revokeErrs:    make(map[snowflake.ID]error),
		overwriteErrs: make(map[snowflake.ID][]error),
		nextID:        5000,
	}
}

func (c *fakeClient) addMember(m gateway.Member) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.members[m.ID] = m
}

func (c *fakeClient) BotUserID() snowflake.ID { return testBotID }

func (c *fakeClient) GetGuild(ctx context.Context, guildID snowflake.ID) (gateway.Guild, error) {
	return gateway.Guild{ID: guildID, Name: "test guild", OwnerID: testOwnerID}, nil
}

func (c *fakeClient) GetMember(ctx context.Context, guildID, userID snowflake.ID) (gateway.Member, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
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
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]gateway.Role(nil), c.roles...), nil
}

func (c *fakeClient) CreateRole(ctx context.Context, guildID snowflake.ID, name string) (gateway.Role, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	role := gateway.Role{ID: c.nextID, Name: name}
	c.roles = append(c.roles, role)
	return role, nil
}

func (c *fakeClient) GrantRole(ctx context.Context, guildID, userID, roleID snowflake.ID, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.grantErrs[roleID]; err != nil {
		return err
	}
	c.grants = append(c.grants, roleCall{UserID: userID, RoleID: roleID})
	return nil
}

func (c *fakeClient) RevokeRole(ctx context.Context, guildID, userID, roleID snowflake.ID, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.revokeErrs[roleID]; err != nil {
		return err
	}
	c.revokes = append(c.revokes, roleCall{UserID: userID, RoleID: roleID})
	return nil
}

func (c *fakeClient) GetChannels(ctx context.Context, guildID snowflake.ID) ([]gateway.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]gateway.Channel(nil), c.channels...), nil
}

func (c *fakeClient) CreateTextChannel(ctx context.Context, guildID snowflake.ID, name string, overwrites []discord.PermissionOverwrite) (gateway.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	ch := gateway.Channel{ID: c.nextID, Name: name, Kind: gateway.ChannelKindText}
	c.channels = append(c.channels, ch)
	return ch, nil
}

func (c *fakeClient) SetRoleOverwrite(ctx context.Context, channelID, roleID snowflake.ID, ow gateway.Overwrite) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if errs := c.overwriteErrs[channelID]; len(errs) > 0 {
		err := errs[0]
		c.overwriteErrs[channelID] = errs[1:]
		if err != nil {
			return err
		}
	}
	c.overwrites = append(c.overwrites, overwriteCall{ChannelID: channelID, RoleID: roleID, Overwrite: ow})
	return nil
}

func (c *fakeClient) SendMessage(ctx context.Context, channelID snowflake.ID, msg discord.MessageCreate) (gateway.MessageRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.sentTo = append(c.sentTo, channelID)
	return gateway.MessageRef{ChannelID: channelID, MessageID: c.nextID}, nil
}

func (c *fakeClient) EditMessage(ctx context.Context, ref gateway.MessageRef, update discord.MessageUpdate) error {
	return nil
}

func (c *fakeClient) DeleteMessage(ctx context.Context, ref gateway.MessageRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletedMsgs = append(c.deletedMsgs, ref)
	return nil
}

func (c *fakeClient) AddReaction(ctx context.Context, ref gateway.MessageRef, emoji string) error {
	return nil
}

func (c *fakeClient) ClearReactions(ctx context.Context, ref gateway.MessageRef) error {
	return nil
}

func (c *fakeClient) SendDirectMessage(ctx context.Context, userID snowflake.ID, msg discord.MessageCreate) (gateway.MessageRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dmErr != nil {
		return gateway.MessageRef{}, c.dmErr
	}
	c.dms = append(c.dms, userID)
	c.nextID++
	return gateway.MessageRef{ChannelID: 1, MessageID: c.nextID}, nil
}

func (c *fakeClient) DeleteDirectMessage(ctx context.Context, userID, messageID snowflake.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dmDeletes = append(c.dmDeletes, messageID)
	return nil
}

type fakeMuteRepo struct {
	mu     sync.Mutex
	nextID int64
	mutes  []*models.Mute
}

func newFakeMuteRepo() *fakeMuteRepo {
	return &fakeMuteRepo{}
}

func (r *fakeMuteRepo) Create(ctx context.Context, m *models.Mute) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.mutes {
		if existing.GuildID == m.GuildID && existing.UserID == m.UserID && existing.Status == models.MuteStatusActive {
			return repositories.ErrUserAlreadyMuted
		}
	}
	r.nextID++
	m.ID = r.nextID
	cp := *m
	r.mutes = append(r.mutes, &cp)
	return nil
}

func (r *fakeMuteRepo) GetActiveByUser(ctx context.Context, guildID, userID snowflake.ID) (*models.Mute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.mutes {
		if m.GuildID == guildID && m.UserID == userID && m.Status == models.MuteStatusActive {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeMuteRepo) GetByCase(ctx context.Context, guildID snowflake.ID, caseNumber int64) (*models.Mute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.mutes {
		if m.GuildID == guildID && m.CaseNumber == caseNumber {
			cp := *m
			return &cp, nil
		}
	}
	return nil, repositories.ErrMuteNotFound
}

func (r *fakeMuteRepo) ListActive(ctx context.Context, guildID snowflake.ID) ([]*models.Mute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Mute
	for _, m := range r.mutes {
		if m.GuildID == guildID && m.Status == models.MuteStatusActive {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeMuteRepo) ListExpired(ctx context.Context, now time.Time) ([]*models.Mute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Mute
	for _, m := range r.mutes {
		if m.Status == models.MuteStatusActive && m.ExpiresAt != nil && !now.Before(*m.ExpiresAt) {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeMuteRepo) ListByUser(ctx context.Context, guildID, userID snowflake.ID) ([]*models.Mute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Mute
	for _, m := range r.mutes {
		if m.GuildID == guildID && m.UserID == userID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeMuteRepo) ListCases(ctx context.Context, guildID snowflake.ID, limit int) ([]*models.Mute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Mute
	for i := len(r.mutes) - 1; i >= 0 && len(out) < limit; i-- {
		if r.mutes[i].GuildID == guildID {
			cp := *r.mutes[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeMuteRepo) Resolve(ctx context.Context, id int64, status models.MuteStatus, by snowflake.ID, reason string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.mutes {
		if m.ID != id {
			continue
		}
		if m.Status != models.MuteStatusActive && m.Status != models.MuteStatusError {
			return false, nil
		}
		now := time.Now()
		m.Status = status
		m.ResolvedBy = by
		m.ResolvedAt = &now
		m.ResolveReason = reason
		return true, nil
	}
	return false, nil
}

func (r *fakeMuteRepo) MarkError(ctx context.Context, id int64, detail string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.mutes {
		if m.ID == id && m.Status == models.MuteStatusActive {
			m.Status = models.MuteStatusError
			m.LastError = detail
		}
	}
	return nil
}

func (r *fakeMuteRepo) ResolveAll(ctx context.Context, guildID snowflake.ID, by snowflake.ID, reason string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	now := time.Now()
	for _, m := range r.mutes {
		if m.GuildID == guildID && m.Status == models.MuteStatusActive {
			m.Status = models.MuteStatusLifted
			m.ResolvedBy = by
			m.ResolvedAt = &now
			m.ResolveReason = reason
			n++
		}
	}
	return n, nil
}

func (r *fakeMuteRepo) get(id int64) *models.Mute {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.mutes {
		if m.ID == id {
			cp := *m
			return &cp
		}
	}
	return nil
}

type fakeAppealRepo struct {
	mu      sync.Mutex
	nextID  int64
	appeals []*models.Appeal
}

func newFakeAppealRepo() *fakeAppealRepo {
	return &fakeAppealRepo{}
}

func (r *fakeAppealRepo) Create(ctx context.Context, a *models.Appeal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	a.ID = r.nextID
	a.CreatedAt = time.Now()
	cp := *a
	r.appeals = append(r.appeals, &cp)
	return nil
}

func (r *fakeAppealRepo) GetByID(ctx context.Context, id int64) (*models.Appeal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.appeals {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repositories.ErrAppealNotFound
}

func (r *fakeAppealRepo) GetPendingByUser(ctx context.Context, guildID, userID snowflake.ID) (*models.Appeal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.appeals) - 1; i >= 0; i-- {
		a := r.appeals[i]
		if a.GuildID == guildID && a.UserID == userID && a.Status == models.AppealStatusPending {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeAppealRepo) GetLatestByUser(ctx context.Context, guildID, userID snowflake.ID) (*models.Appeal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.appeals) - 1; i >= 0; i-- {
		a := r.appeals[i]
		if a.GuildID == guildID && a.UserID == userID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeAppealRepo) SetReviewRef(ctx context.Context, id int64, channelID, messageID snowflake.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.appeals {
		if a.ID == id {
			a.ReviewChannelID = channelID
			a.ReviewMessageID = messageID
		}
	}
	return nil
}

func (r *fakeAppealRepo) Review(ctx context.Context, id int64, status models.AppealStatus, reviewerID snowflake.ID, note string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.appeals {
		if a.ID != id {
			continue
		}
		if a.Status != models.AppealStatusPending {
			return false, nil
		}
		now := time.Now()
		a.Status = status
		a.ReviewerID = reviewerID
		a.ReviewNote = note
		a.ReviewedAt = &now
		return true, nil
	}
	return false, nil
}

func (r *fakeAppealRepo) ListStale(ctx context.Context, olderThan time.Time) ([]*models.Appeal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Appeal
	for _, a := range r.appeals {
		if a.Status == models.AppealStatusPending && !a.CreatedAt.After(olderThan) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeAppealRepo) get(id int64) *models.Appeal {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.appeals {
		if a.ID == id {
			cp := *a
			return &cp
		}
	}
	return nil
}

type fakeCounterRepo struct {
	mu     sync.Mutex
	values map[string]int64
}

func newFakeCounterRepo() *fakeCounterRepo {
	return &fakeCounterRepo{values: make(map[string]int64)}
}

func (r *fakeCounterRepo) Next(ctx context.Context, guildID snowflake.ID, name string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := guildID.String() + ":" + name
	r.values[key]++
	return r.values[key], nil
}

func (r *fakeCounterRepo) Current(ctx context.Context, guildID snowflake.ID, name string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.values[guildID.String()+":"+name], nil
}

type fakeGuildConfigRepo struct {
	mu      sync.Mutex
	configs map[snowflake.ID]*models.GuildConfig
}

func newFakeGuildConfigRepo() *fakeGuildConfigRepo {
	return &fakeGuildConfigRepo{configs: make(map[snowflake.ID]*models.GuildConfig)}
}

func (r *fakeGuildConfigRepo) Get(ctx context.Context, guildID snowflake.ID) (*models.GuildConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.configs[guildID]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *fakeGuildConfigRepo) Upsert(ctx context.Context, c *models.GuildConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.configs[c.GuildID] = &cp
	return nil
}

func (r *fakeGuildConfigRepo) Invalidate(guildID snowflake.ID) {}

type fakePendingDeleteRepo struct {
	mu      sync.Mutex
	nextID  int64
	pending []*models.PendingDMDelete
}

func newFakePendingDeleteRepo() *fakePendingDeleteRepo {
	return &fakePendingDeleteRepo{}
}

func (r *fakePendingDeleteRepo) Create(ctx context.Context, p *models.PendingDMDelete) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.pending {
		if existing.MessageID == p.MessageID {
			return nil
		}
	}
	r.nextID++
	p.ID = r.nextID
	cp := *p
	r.pending = append(r.pending, &cp)
	return nil
}

func (r *fakePendingDeleteRepo) ListAll(ctx context.Context) ([]*models.PendingDMDelete, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.PendingDMDelete, len(r.pending))
	for i, p := range r.pending {
		cp := *p
		out[i] = &cp
	}
	return out, nil
}

func (r *fakePendingDeleteRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.pending {
		if p.ID == id {
			r.pending = append(r.pending[:i], r.pending[i+1:]...)
			return nil
		}
	}
	return nil
}

type fakeTranscriptStore struct {
	mu       sync.Mutex
	messages []transcripts.Message
}

func (s *fakeTranscriptStore) Record(ctx context.Context, msg transcripts.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

func (s *fakeTranscriptStore) ByUser(ctx context.Context, guildID, userID snowflake.ID, limit int64) ([]transcripts.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []transcripts.Message
	for _, m := range s.messages {
		if m.GuildID == int64(guildID) && m.UserID == int64(userID) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeTranscriptStore) ByCase(ctx context.Context, guildID snowflake.ID, caseNumber int64, limit int64) ([]transcripts.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []transcripts.Message
	for _, m := range s.messages {
		if m.GuildID == int64(guildID) && m.CaseNumber == caseNumber {
			out = append(out, m)
		}
	}
	return out, nil
}

type testEnv struct {
	manager      *Manager
	client       *fakeClient
	mutes        *fakeMuteRepo
	appeals      *fakeAppealRepo
	counters     *fakeCounterRepo
	guildConfigs *fakeGuildConfigRepo
	pending      *fakePendingDeleteRepo
	transcripts  *fakeTranscriptStore
	supervisor   *tasks.Supervisor
}

func newTestEnv(cfg Config) *testEnv {
	client := newFakeClient()
	mutes := newFakeMuteRepo()
	appeals := newFakeAppealRepo()
	counters := newFakeCounterRepo()
	guildConfigs := newFakeGuildConfigRepo()
	pending := newFakePendingDeleteRepo()
	store := &fakeTranscriptStore{}
	supervisor := tasks.NewSupervisor()
	notifier := notify.New(pending, client, supervisor)
	return &testEnv{
		manager:      NewManager(mutes, appeals, counters, guildConfigs, store, notifier, client, supervisor, cfg),
		client:       client,
		mutes:        mutes,
		appeals:      appeals,
		counters:     counters,
		guildConfigs: guildConfigs,
		pending:      pending,
		transcripts:  store,
		supervisor:   supervisor,
	}
}

const (
	testMuteRoleID = snowflake.ID(4000)
	testJailID     = snowflake.ID(4001)
	testLogID      = snowflake.ID(4002)
)

// configure seeds a complete guild config plus the backing role and channels
// so Apply and Setup checks pass.
func (env *testEnv) configure() {
	_ = env.guildConfigs.Upsert(context.Background(), &models.GuildConfig{
		GuildID:       testGuildID,
		MuteRoleID:    testMuteRoleID,
		JailChannelID: testJailID,
		LogChannelID:  testLogID,
	})
	env.client.roles = append(env.client.roles,
		gateway.Role{ID: testMuteRoleID, Name: mutedRoleName, Position: 1},
		gateway.Role{ID: 4100, Name: "Moderator", Position: 10},
		gateway.Role{ID: 4101, Name: "Member", Position: 5},
	)
	env.client.channels = append(env.client.channels,
		gateway.Channel{ID: testJailID, Name: jailChannelName, Kind: gateway.ChannelKindText},
		gateway.Channel{ID: testLogID, Name: logChannelName, Kind: gateway.ChannelKindText},
	)
	env.client.addMember(gateway.Member{ID: testBotID, Username: "bot", RoleIDs: []snowflake.ID{4100}})
}

func (env *testEnv) addModerator(id snowflake.ID) {
	env.client.addMember(gateway.Member{ID: id, Username: "mod", RoleIDs: []snowflake.ID{4100}})
}

func (env *testEnv) addTarget(id snowflake.ID, name string, roleIDs ...snowflake.ID) {
	env.client.addMember(gateway.Member{ID: id, Username: name, RoleIDs: roleIDs})
}
