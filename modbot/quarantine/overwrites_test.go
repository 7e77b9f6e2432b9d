package quarantine

import (
	"context"
	"errors"
	"testing"

	"github.com/sukoonbot/sukoon/modbot/gateway"
)

func TestSetupCreatesInfrastructure(t *testing.T) {
	env := newTestEnv(testConfig())
	ctx := context.Background()

	res, err := env.manager.Setup(ctx, testGuildID)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	if !res.CreatedRole || !res.CreatedJail || !res.CreatedLog {
		t.Errorf("created flags = role %v, jail %v, log %v; want all true",
			res.CreatedRole, res.CreatedJail, res.CreatedLog)
	}
	if len(res.FailedChannels) != 0 {
		t.Errorf("failed channels = %v", res.FailedChannels)
	}
	if res.Config == nil || !res.Config.IsComplete() {
		t.Fatalf("config = %+v, want complete", res.Config)
	}

	stored, _ := env.guildConfigs.Get(ctx, testGuildID)
	if stored == nil || stored.MuteRoleID != res.Config.MuteRoleID {
		t.Error("config was not persisted")
	}

	// The jail channel lets muted members speak, the log channel does not.
	var jailOK, logOK bool
	for _, ow := range env.client.overwrites {
		if ow.RoleID != res.Config.MuteRoleID {
			continue
		}
		switch ow.ChannelID {
		case res.Config.JailChannelID:
			jailOK = ow.Overwrite.ViewChannel && ow.Overwrite.SendMessages
		case res.Config.LogChannelID:
			logOK = !ow.Overwrite.ViewChannel && !ow.Overwrite.SendMessages
		}
	}
	if !jailOK {
		t.Error("jail channel overwrite does not allow muted members")
	}
	if !logOK {
		t.Error("log channel overwrite does not deny muted members")
	}
}

func TestSetupReusesExisting(t *testing.T) {
	env := newTestEnv(testConfig())
	env.configure()

	res, err := env.manager.Setup(context.Background(), testGuildID)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if res.CreatedRole || res.CreatedJail || res.CreatedLog {
		t.Errorf("created flags = role %v, jail %v, log %v; want all false",
			res.CreatedRole, res.CreatedJail, res.CreatedLog)
	}
	if res.Config.MuteRoleID != testMuteRoleID || res.Config.JailChannelID != testJailID || res.Config.LogChannelID != testLogID {
		t.Errorf("config = %+v, want the existing ids", res.Config)
	}
}

func TestSweepOrdersCategoriesFirst(t *testing.T) {
	env := newTestEnv(testConfig())
	env.client.channels = []gateway.Channel{
		{ID: 1, Name: "general", Kind: gateway.ChannelKindText},
		{ID: 2, Name: "Community", Kind: gateway.ChannelKindCategory},
	}

	env.manager.Sweep(context.Background(), testGuildID, testMuteRoleID, 0)

	if len(env.client.overwrites) != 2 {
		t.Fatalf("applied %d overwrites, want 2", len(env.client.overwrites))
	}
	if env.client.overwrites[0].ChannelID != 2 {
		t.Errorf("first overwrite hit channel %d, want the category", env.client.overwrites[0].ChannelID)
	}
}

func TestSweepRetriesTransientFailures(t *testing.T) {
	env := newTestEnv(testConfig())
	env.client.channels = []gateway.Channel{
		{ID: 1, Name: "general", Kind: gateway.ChannelKindText},
	}
	env.client.overwriteErrs[1] = []error{gateway.ErrRateLimited}

	failed := env.manager.Sweep(context.Background(), testGuildID, testMuteRoleID, 0)

	if len(failed) != 0 {
		t.Errorf("failed = %v, want retry to succeed", failed)
	}
	if len(env.client.overwrites) != 1 {
		t.Errorf("applied %d overwrites, want 1", len(env.client.overwrites))
	}
}

func TestSweepCollectsFailuresWithoutAborting(t *testing.T) {
	env := newTestEnv(testConfig())
	env.client.channels = []gateway.Channel{
		{ID: 1, Name: "broken", Kind: gateway.ChannelKindText},
		{ID: 2, Name: "general", Kind: gateway.ChannelKindText},
	}
	env.client.overwriteErrs[1] = []error{gateway.ErrPermissionDenied}

	failed := env.manager.Sweep(context.Background(), testGuildID, testMuteRoleID, 0)

	if len(failed) != 1 || failed[0] != "broken" {
		t.Errorf("failed = %v, want [broken]", failed)
	}
	var sweptOther bool
	for _, ow := range env.client.overwrites {
		if ow.ChannelID == 2 {
			sweptOther = true
		}
	}
	if !sweptOther {
		t.Error("a failing channel aborted the sweep")
	}
}

func TestReapplySweepRequiresSetup(t *testing.T) {
	env := newTestEnv(testConfig())

	if _, err := env.manager.ReapplySweep(context.Background(), testGuildID); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("ReapplySweep() error = %v, want ErrNotConfigured", err)
	}
}

func TestCheckSetup(t *testing.T) {
	env := newTestEnv(testConfig())
	ctx := context.Background()

	if _, _, err := env.manager.CheckSetup(ctx, testGuildID); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("CheckSetup() error = %v, want ErrNotConfigured", err)
	}

	env.configure()
	_, problems, err := env.manager.CheckSetup(ctx, testGuildID)
	if err != nil {
		t.Fatalf("CheckSetup() error = %v", err)
	}
	if len(problems) != 0 {
		t.Errorf("problems = %v, want none", problems)
	}

	// Drop the mute role and the jail channel.
	env.client.mu.Lock()
	var roles []gateway.Role
	for _, r := range env.client.roles {
		if r.ID != testMuteRoleID {
			roles = append(roles, r)
		}
	}
	env.client.roles = roles
	var channels []gateway.Channel
	for _, ch := range env.client.channels {
		if ch.ID != testJailID {
			channels = append(channels, ch)
		}
	}
	env.client.channels = channels
	env.client.mu.Unlock()

	_, problems, err = env.manager.CheckSetup(ctx, testGuildID)
	if err != nil {
		t.Fatalf("CheckSetup() error = %v", err)
	}
	if len(problems) != 2 {
		t.Errorf("problems = %v, want the missing role and jail channel reported", problems)
	}
}
