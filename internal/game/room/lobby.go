package room

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/gridbrawl/internal/game/dice"
	"github.com/cory-johannsen/gridbrawl/internal/game/event"
	"github.com/cory-johannsen/gridbrawl/internal/game/match"
	"github.com/cory-johannsen/gridbrawl/internal/game/player"
)

// VirtualAvatars is the pool virtual players draw their avatar from.
var VirtualAvatars = []string{
	"avatar-01", "avatar-02", "avatar-03", "avatar-04", "avatar-05", "avatar-06",
	"avatar-07", "avatar-08", "avatar-09", "avatar-10", "avatar-11", "avatar-12",
}

// JoinRequest is a character sheet submitted with joinRoom.
type JoinRequest struct {
	PlayerID string
	Name     string
	Avatar   string
	Stats    player.Stats
}

// Join admits a human player into the lobby.
//
// Postcondition: on success the joiner receives roomJoined and everyone
// receives playersUpdated; a room that becomes full locks itself.
func (r *Room) Join(req JoinRequest) error {
	return r.exec(func() error {
		switch {
		case r.game.HasStarted():
			return ErrGameStarted
		case r.locked && req.PlayerID != r.organizer:
			return ErrRoomLocked
		case r.game.Player(req.PlayerID) != nil:
			return ErrAlreadyJoined
		case len(r.game.Players()) >= r.game.MaxPlayers():
			return ErrRoomFull
		case req.Avatar == "" || player.ByAvatar(r.game.Players(), req.Avatar) != nil:
			return ErrAvatarTaken
		}
		if err := req.Stats.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidStats, err)
		}
		name := r.uniqueName(strings.TrimSpace(req.Name))
		p := player.New(req.PlayerID, name, req.Avatar, req.Stats, player.ProfileHuman, player.Human{})
		if err := r.admit(p); err != nil {
			return err
		}
		r.members[req.PlayerID] = true
		r.route(event.Direct(req.PlayerID, event.RoomJoined, r.info()))
		r.lobbyChanged()
		return nil
	})
}

// AddVirtualPlayer adds a bot of the given profile.
func (r *Room) AddVirtualPlayer(requester string, profile player.Profile) error {
	return r.exec(func() error {
		if requester != r.organizer {
			return ErrNotOrganizer
		}
		if r.game.HasStarted() {
			return ErrGameStarted
		}
		if profile == player.ProfileHuman || !profile.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownProfile, profile)
		}
		if len(r.game.Players()) >= r.game.MaxPlayers() {
			return ErrRoomFull
		}
		agent, err := r.deps.Agents.AgentFor(profile)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnknownProfile, err)
		}
		avatar, ok := r.freeAvatar()
		if !ok {
			return ErrAvatarTaken
		}
		name := r.uniqueName("Bot " + strings.ToUpper(string(profile[:1])) + string(profile[1:]))
		p := player.New(r.deps.NewID(), name, avatar, r.virtualStats(), profile, agent)
		if err := r.admit(p); err != nil {
			return err
		}
		r.logger.Info("virtual player added", zap.String("player", p.ID), zap.String("profile", string(profile)))
		r.lobbyChanged()
		return nil
	})
}

func (r *Room) admit(p *player.Player) error {
	err := r.game.AddPlayer(p)
	switch {
	case errors.Is(err, match.ErrFull):
		return ErrRoomFull
	case errors.Is(err, match.ErrStarted):
		return ErrGameStarted
	case errors.Is(err, match.ErrAvatarTaken):
		return ErrAvatarTaken
	case errors.Is(err, match.ErrDuplicateID):
		return ErrAlreadyJoined
	case err != nil:
		return err
	}
	return nil
}

// lobbyChanged broadcasts the roster and auto-locks a full room.
func (r *Room) lobbyChanged() {
	r.route(event.Broadcast(event.PlayersUpdated, event.PlayersPayload{Players: r.game.Snapshots()}))
	if !r.locked && len(r.game.Players()) >= r.game.MaxPlayers() {
		r.setLocked(true)
	}
}

func (r *Room) setLocked(locked bool) {
	r.locked = locked
	r.route(event.Broadcast(event.RoomLocked, event.RoomLockedPayload{Locked: locked}))
}

// uniqueName suffixes name with -2, -3, … until no participant has it.
func (r *Room) uniqueName(name string) string {
	if name == "" {
		name = "Player"
	}
	taken := map[string]bool{}
	for _, p := range r.game.Players() {
		taken[p.Name] = true
	}
	if !taken[name] {
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s-%d", name, i)
		if !taken[candidate] {
			return candidate
		}
	}
}

func (r *Room) freeAvatar() (string, bool) {
	players := r.game.Players()
	var free []string
	for _, a := range VirtualAvatars {
		if player.ByAvatar(players, a) == nil {
			free = append(free, a)
		}
	}
	if len(free) == 0 {
		return "", false
	}
	return free[r.deps.Roller.Source().Intn(len(free))], true
}

// virtualStats draws a character sheet the way a human builds one: a +2
// bonus on life or speed and a d6 on attack or defense.
func (r *Room) virtualStats() player.Stats {
	src := r.deps.Roller.Source()
	s := player.Stats{Life: 4, Speed: 4, Attack: 4, Defense: 4, AttackDice: dice.D4, DefenseDice: dice.D4}
	if src.Intn(2) == 0 {
		s.Life += 2
	} else {
		s.Speed += 2
	}
	if src.Intn(2) == 0 {
		s.AttackDice = dice.D6
	} else {
		s.DefenseDice = dice.D6
	}
	return s
}

// Lock closes the lobby to new joiners.
func (r *Room) Lock(requester string) error {
	return r.exec(func() error {
		if requester != r.organizer {
			return ErrNotOrganizer
		}
		if !r.locked {
			r.setLocked(true)
		}
		return nil
	})
}

// Unlock reopens the lobby. A full room stays locked.
func (r *Room) Unlock(requester string) error {
	return r.exec(func() error {
		if requester != r.organizer {
			return ErrNotOrganizer
		}
		if r.game.HasStarted() {
			return ErrGameStarted
		}
		if len(r.game.Players()) >= r.game.MaxPlayers() {
			return ErrRoomFull
		}
		if r.locked {
			r.setLocked(false)
		}
		return nil
	})
}

// Start configures the match and begins the first turn.
func (r *Room) Start(requester string) error {
	return r.exec(func() error {
		switch {
		case requester != r.organizer:
			return ErrNotOrganizer
		case r.game.HasStarted():
			return ErrGameStarted
		case !r.locked:
			return ErrNotLocked
		case len(r.game.Players()) < 2:
			return fmt.Errorf("%w: need at least 2 players", ErrInvalidRoster)
		}
		if !r.game.Configure() {
			return ErrInvalidRoster
		}
		r.game.SetAdmin(r.organizer)
		r.game.StartTurn()
		return nil
	})
}

// Expel removes target from the room, before or during the match.
func (r *Room) Expel(requester, target string) error {
	return r.exec(func() error {
		if requester != r.organizer {
			return ErrNotOrganizer
		}
		if target == r.organizer {
			return ErrCannotExpelSelf
		}
		if r.game.Player(target) == nil {
			return ErrNotMember
		}
		r.route(event.Direct(target, event.RoomClosed, event.RoomClosedPayload{Reason: "expelled"}))
		r.depart(target)
		return nil
	})
}

// Leave removes playerID from the room. The organizer leaving the lobby
// closes the room.
func (r *Room) Leave(playerID string) error {
	return r.exec(func() error {
		if !r.members[playerID] && r.game.Player(playerID) == nil {
			return ErrNotMember
		}
		if playerID == r.organizer && !r.game.HasStarted() {
			r.shutdown(ReasonOrganizerLeft)
			return nil
		}
		r.depart(playerID)
		return nil
	})
}

// depart drops playerID from the roster and the members, then closes the
// room when nobody is left to play. Debug mode never outlives the organizer.
func (r *Room) depart(playerID string) {
	delete(r.members, playerID)
	r.deps.Members.Detach(playerID, r.code)

	if playerID == r.organizer && r.game.Debug() {
		r.game.ToggleDebug(false)
	}

	if r.game.Player(playerID) != nil {
		if r.game.HasStarted() {
			r.game.RemovePlayer(playerID)
		} else {
			r.game.RemoveLobbyPlayer(playerID)
			r.route(event.Broadcast(event.PlayerRemoved, event.PlayerPayload{PlayerID: playerID}))
			r.route(event.Broadcast(event.PlayersUpdated, event.PlayersPayload{Players: r.game.Snapshots()}))
		}
	}

	if !r.game.HasStarted() {
		return
	}
	switch {
	case !r.hasHuman():
		r.shutdown(ReasonNoHumans)
	case r.game.IsOver() && len(r.game.Players()) <= 1:
		r.shutdown(ReasonGameOver)
	}
}

func (r *Room) hasHuman() bool {
	for _, p := range r.game.Players() {
		if !p.IsVirtual() {
			return true
		}
	}
	return false
}

// Chat stores and broadcasts a message.
func (r *Room) Chat(playerID, text string) error {
	return r.exec(func() error {
		if !r.members[playerID] {
			return ErrNotMember
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return ErrEmptyMessage
		}
		if len(text) > MaxChatLength {
			text = text[:MaxChatLength]
		}
		author := playerID
		if p := r.game.Player(playerID); p != nil {
			author = p.Name
		}
		msg := event.ChatPayload{Author: author, Text: text, At: r.deps.Now()}
		r.chat = append(r.chat, msg)
		if len(r.chat) > ChatHistoryLimit {
			r.chat = r.chat[len(r.chat)-ChatHistoryLimit:]
		}
		r.route(event.Broadcast(event.ChatMessage, msg))
		return nil
	})
}

// Handle forwards an in-match intent. Invalid requests are silently
// ignored by the match; only a missing match is reported.
func (r *Room) Handle(in event.Intent) error {
	return r.exec(func() error {
		if !r.game.HasStarted() {
			return ErrGameNotStarted
		}
		g, id := r.game, in.PlayerID
		switch in.Type {
		case event.IntentMove:
			if in.Position == nil {
				return nil
			}
			if path, ok := g.ReachablePath(*in.Position); ok {
				g.ProcessPath(path, id)
			}
		case event.IntentDebugMove:
			if in.Position != nil {
				g.MovePlayerDebug(*in.Position, id)
			}
		case event.IntentEndTurn:
			g.EndTurnRequested(id)
		case event.IntentToggleDoor:
			if in.Position != nil {
				g.ChangeDoorState(*in.Position, id)
			}
		case event.IntentToggleDebug:
			if id != r.organizer {
				return ErrNotOrganizer
			}
			g.ToggleDebug(in.Enabled)
		case event.IntentInitFight:
			g.InitFight(id, in.TargetID)
		case event.IntentAttack:
			g.FightAttack(id)
		case event.IntentFlee:
			g.FightFlee(id)
		case event.IntentInventoryChoice:
			g.InventoryChoice(id, in.Item)
		default:
			return fmt.Errorf("room: intent %q is not a match action", in.Type)
		}
		return nil
	})
}
