package screens

import (
	"context"
	"strings"

	"github.com/mrlokans/library/internal/entities"
	"github.com/mrlokans/library/internal/session"
)

// ProfileData is rendered by the profile screen.
type ProfileData struct {
	User      *entities.UserProfile `json:"user"`
	Stats     entities.LibraryStats `json:"stats"`
	ToRead    int64                 `json:"to_read"`
	SignedOut bool                  `json:"signed_out,omitempty"`
}

// Profile shows the signed-in user with their shelf totals.
type Profile struct {
	*view[ProfileData]

	deps    Deps
	session session.Session
}

func NewProfile(deps Deps, sess session.Session) *Profile {
	return &Profile{
		view:    newView(ProfileData{User: sess.User}),
		deps:    deps.withDefaults(),
		session: sess,
	}
}

func (p *Profile) Load(ctx context.Context) error {
	owner, ok := p.session.OwnerID()
	if !ok {
		p.empty(ProfileData{})
		return nil
	}

	stats, err := p.deps.Books.Stats(ctx, owner)
	if err != nil {
		p.fail(alertFor(err))
		return err
	}
	p.update(func(s *State[ProfileData]) {
		s.Phase = PhaseReady
		s.Data.Stats = stats
		s.Data.ToRead = stats.ToRead()
		s.Alert = nil
	})
	return nil
}

// UpdateDisplayName saves a new, non-blank display name.
func (p *Profile) UpdateDisplayName(ctx context.Context, name string) (*entities.UserProfile, error) {
	owner, ok := p.session.OwnerID()
	if !ok {
		p.alert(alertFor(ErrNoSession))
		return nil, ErrNoSession
	}
	if err := p.deps.Validator.Var("display_name", name, "notblank,max=100"); err != nil {
		p.alert(alertFor(err))
		return nil, err
	}

	user, err := p.deps.Accounts.UpdateDisplayName(ctx, owner, strings.TrimSpace(name))
	if err != nil {
		p.alert(alertFor(err))
		return nil, err
	}

	profile := user.Profile()
	p.update(func(s *State[ProfileData]) {
		s.Data.User = profile
		s.Alert = nil
	})
	return profile, nil
}

// SignOut ends the session. The session gate moves every open client back to
// the auth flow.
func (p *Profile) SignOut(ctx context.Context) error {
	owner, ok := p.session.OwnerID()
	if !ok {
		return nil
	}
	if err := p.deps.Accounts.SignOut(ctx, owner); err != nil {
		p.alert(alertFor(err))
		return err
	}
	p.empty(ProfileData{SignedOut: true})
	return nil
}
