// Package world implements the fixed-tick authoritative simulation (§4.4):
// input consumption, integration, toroidal wrapping, swept-AABB collision
// arbitration, game-over/leaderboard finalization, and snapshot broadcast.
// It is the largest component and the one the rest of internal/ exists to
// serve; its tick loop follows the teacher's updateLoop ticker pattern
// (source/server/server.go's 50ms time.Ticker) generalized to the spec's
// physics instead of SA-MP's player-sync relay.
package world

import (
	"math"
	"math/rand"
	"sync"

	"github.com/dpasteros/asteroids-net/internal/collision"
	"github.com/dpasteros/asteroids-net/internal/input"
	"github.com/dpasteros/asteroids-net/internal/leaderboard"
	"github.com/dpasteros/asteroids-net/internal/snapshot"
)

// Tunables named directly in §4.4; collected here rather than scattered
// as magic numbers through Step, matching how the teacher groups its
// VehiclePhysicsConfig constants in core/systems/vehicle_system.go.
const (
	RotSpeed     = 3.0 // radians/sec
	AccelFwd     = 40.0
	AccelBack    = 20.0
	MaxFwd       = 120.0
	MaxBack      = 60.0
	BulletSpeed  = 300.0
	AsteroidScore = 100

	WorldWidth  = 800.0
	WorldHeight = 600.0

	GameDurationSeconds = 180.0
)

// Object is one live slot in the bounded object table (§3).
type Object struct {
	Kind    snapshot.ObjectKind
	OwnerID uint16
	PosX, PosY float32
	VelX, VelY float32
	Rot        float32
	ScaleX, ScaleY float32
}

func (o Object) aabb() collision.AABB {
	return collision.AABB{
		Min: collision.Vec2{X: o.PosX - o.ScaleX, Y: o.PosY - o.ScaleY},
		Max: collision.Vec2{X: o.PosX + o.ScaleX, Y: o.PosY + o.ScaleY},
	}
}

func (o Object) vel() collision.Vec2 {
	return collision.Vec2{X: o.VelX, Y: o.VelY}
}

// Player is one InGame player's replicated record plus its input latch.
type Player struct {
	ID    uint16
	Name  string
	Score int32
	Lives int32

	Latch *input.Latch

	shipSlot int // index into World.objects, -1 if no slot was free at AddPlayer
}

// Phase is the tick engine's top-level mode.
type Phase int

const (
	PhaseRunning Phase = iota
	PhaseFinalizing
	PhaseDone
)

// World owns every mutable simulation object plus the player table
// (§5: "World state + input latches: single game-loop writer; snapshot
// thread reads under lock").
type World struct {
	mu sync.RWMutex

	WorldSeq uint64
	Phase    Phase

	players []*Player
	objects [snapshot.MaxObjects]Object

	remaining float64 // seconds left in the match countdown

	leaderboardSent map[uint16]bool

	rng *rand.Rand
}

// New builds an empty world with a live countdown of GameDurationSeconds.
func New() *World {
	return &World{
		remaining:       GameDurationSeconds,
		leaderboardSent: make(map[uint16]bool),
		rng:             rand.New(rand.NewSource(1)),
	}
}

// AddPlayer registers a new InGame player and spawns its ship at the
// origin, matching §4.3's "hands them to the game tick engine" with
// score=0, lives initialized by the session layer (3, per registry.go).
func (w *World) AddPlayer(id uint16, name string, lives int32) *Player {
	w.mu.Lock()
	defer w.mu.Unlock()

	p := &Player{ID: id, Name: name, Lives: lives, Latch: input.New()}
	p.shipSlot = w.allocSlot()
	if p.shipSlot >= 0 {
		w.objects[p.shipSlot] = Object{
			Kind: snapshot.KindShip, OwnerID: id,
			ScaleX: 8, ScaleY: 8,
		}
	}
	w.players = append(w.players, p)
	return p
}

// RemovePlayer drops a player and frees its ship slot (§4.3 quit path).
func (w *World) RemovePlayer(id uint16) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, p := range w.players {
		if p.ID == id {
			if p.shipSlot >= 0 {
				w.objects[p.shipSlot] = Object{}
			}
			w.players = append(w.players[:i], w.players[i+1:]...)
			return
		}
	}
}

// Players returns a snapshot slice of every player currently in the
// world, for the server to route inbound INPUT packets to the right
// latch without reaching into World's internals.
func (w *World) Players() []*Player {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*Player, len(w.players))
	copy(out, w.players)
	return out
}

func (w *World) allocSlot() int {
	for i := range w.objects {
		if w.objects[i].Kind == snapshot.KindNone {
			return i
		}
	}
	return -1
}

func forward(rot float32) (float32, float32) {
	return float32(math.Cos(float64(rot))), float32(math.Sin(float64(rot)))
}

func clampMag(vx, vy, max float32) (float32, float32) {
	mag := float32(math.Hypot(float64(vx), float64(vy)))
	if mag <= max || mag == 0 {
		return vx, vy
	}
	scale := max / mag
	return vx * scale, vy * scale
}

func wrap(v, lo, hi float32) float32 {
	span := hi - lo
	for v < lo {
		v += span
	}
	for v >= hi {
		v -= span
	}
	return v
}

// Step advances the simulation by dt seconds (§4.4). Input is ignored once
// the phase leaves Running.
func (w *World) Step(dt float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.Phase != PhaseRunning {
		return
	}

	w.consumeInput(float32(dt))
	w.integrate(float32(dt))
	w.freeOutOfBoundsBullets()
	w.resolveCollisions(float32(dt))

	w.remaining -= dt
	if w.remaining <= 0 {
		w.Phase = PhaseFinalizing
	}

	w.WorldSeq++
}

func (w *World) consumeInput(dt float32) {
	for _, p := range w.players {
		if p.shipSlot < 0 {
			continue
		}
		s := p.Latch.Consume()
		ship := &w.objects[p.shipSlot]

		if s.Left {
			ship.Rot += RotSpeed * dt
		}
		if s.Right {
			ship.Rot -= RotSpeed * dt
		}
		fx, fy := forward(ship.Rot)
		if s.Up {
			ship.VelX += fx * AccelFwd * dt
			ship.VelY += fy * AccelFwd * dt
			ship.VelX, ship.VelY = clampMag(ship.VelX, ship.VelY, MaxFwd)
		}
		if s.Down {
			ship.VelX -= fx * AccelBack * dt
			ship.VelY -= fy * AccelBack * dt
			ship.VelX, ship.VelY = clampMag(ship.VelX, ship.VelY, MaxBack)
		}
		if s.FireEdge {
			if slot := w.allocSlot(); slot >= 0 {
				w.objects[slot] = Object{
					Kind: snapshot.KindBullet, OwnerID: p.ID,
					PosX: ship.PosX, PosY: ship.PosY,
					VelX: fx * BulletSpeed, VelY: fy * BulletSpeed,
					ScaleX: 5, ScaleY: 5,
				}
			}
			p.Latch.ClearFire()
		}
	}
}

func (w *World) integrate(dt float32) {
	for i := range w.objects {
		o := &w.objects[i]
		if o.Kind == snapshot.KindNone {
			continue
		}
		o.PosX += o.VelX * dt
		o.PosY += o.VelY * dt
		if o.Kind == snapshot.KindBullet {
			// Bullets do not wrap (§4.4 step 3): freeOutOfBoundsBullets
			// needs their raw, unwrapped position to detect they left the
			// arena.
			continue
		}
		o.PosX = wrap(o.PosX, -WorldWidth/2-o.ScaleX, WorldWidth/2+o.ScaleX)
		o.PosY = wrap(o.PosY, -WorldHeight/2-o.ScaleY, WorldHeight/2+o.ScaleY)
	}
}

func (w *World) freeOutOfBoundsBullets() {
	// Bullets do not wrap (§4.4 step 3): they are freed once integration
	// would have carried them past the wrap rectangle rather than being
	// teleported back in.
	for i := range w.objects {
		o := &w.objects[i]
		if o.Kind != snapshot.KindBullet {
			continue
		}
		if o.PosX < -WorldWidth/2-o.ScaleX || o.PosX > WorldWidth/2+o.ScaleX ||
			o.PosY < -WorldHeight/2-o.ScaleY || o.PosY > WorldHeight/2+o.ScaleY {
			*o = Object{}
		}
	}
}

func (w *World) resolveCollisions(dt float32) {
	for i := range w.objects {
		asteroid := &w.objects[i]
		if asteroid.Kind != snapshot.KindAsteroid {
			continue
		}
		for j := range w.objects {
			if i == j {
				continue
			}
			other := &w.objects[j]
			if other.Kind == snapshot.KindNone || other.Kind == snapshot.KindAsteroid {
				continue
			}
			_, hit := collision.Swept(asteroid.aabb(), other.aabb(), asteroid.vel(), other.vel(), dt)
			if !hit {
				continue
			}
			switch other.Kind {
			case snapshot.KindBullet:
				w.awardAndRespawn(asteroid, other)
			case snapshot.KindShip:
				w.damageShip(other)
			}
			break // first hit this tick per asteroid, per §4.4 step 4
		}
	}
}

func (w *World) awardAndRespawn(asteroid, bullet *Object) {
	for _, p := range w.players {
		if p.ID == bullet.OwnerID {
			p.Score += AsteroidScore
		}
	}
	*bullet = Object{}
	asteroid.VelX = (w.rng.Float32()*2 - 1) * 80
	asteroid.VelY = (w.rng.Float32()*2 - 1) * 80
	asteroid.ScaleX = 10 + w.rng.Float32()*20
	asteroid.ScaleY = asteroid.ScaleX
}

func (w *World) damageShip(ship *Object) {
	for _, p := range w.players {
		if p.shipSlot >= 0 && &w.objects[p.shipSlot] == ship {
			if p.Lives > 0 {
				p.Lives--
			}
			if p.Lives == 0 {
				// Hide the ship far off-world rather than freeing its slot,
				// so the player's record survives to leaderboard finalization.
				ship.PosX, ship.PosY = WorldWidth*100, WorldHeight*100
				ship.VelX, ship.VelY = 0, 0
			} else {
				ship.PosX, ship.PosY = 0, 0
				ship.VelX, ship.VelY = 0, 0
				ship.Rot = 0
			}
			return
		}
	}
}

// Finalize merges every player's score into the leaderboard (§4.4 step 5,
// §4.8), marks the world Done, and returns true. A later call is a no-op;
// leaderboardSent keeps each player from being added more than once.
func (w *World) Finalize(board *leaderboard.Store, timestamp string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.Phase == PhaseDone {
		return true
	}
	for _, p := range w.players {
		if w.leaderboardSent[p.ID] {
			continue
		}
		board.Add(p.ID, p.Name, p.Score, timestamp)
		w.leaderboardSent[p.ID] = true
	}
	w.Phase = PhaseDone
	return true
}

// Snapshot builds a snapshot.Snapshot of the current world state under
// the read lock, for the broadcast loop to encode and send (§4.4 step 6).
func (w *World) Snapshot() snapshot.Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var s snapshot.Snapshot
	s.WorldSeq = uint32(w.WorldSeq)

	n := len(w.players)
	if n > snapshot.MaxPlayers {
		n = snapshot.MaxPlayers
	}
	s.PlayerCount = uint32(n)
	for i := 0; i < n; i++ {
		p := w.players[i]
		var pd snapshot.PlayerData
		pd.ID = p.ID
		pd.Score = p.Score
		pd.Lives = p.Lives
		copy(pd.Name[:], p.Name)
		s.Players[i] = pd
	}

	count := 0
	for i := range w.objects {
		if w.objects[i].Kind == snapshot.KindNone {
			continue
		}
		o := w.objects[i]
		s.Objects[count] = snapshot.ObjectData{
			Kind: o.Kind, OwnerID: o.OwnerID,
			PosX: o.PosX, PosY: o.PosY,
			VelX: o.VelX, VelY: o.VelY,
			Rot: o.Rot, ScaleX: o.ScaleX, ScaleY: o.ScaleY,
		}
		count++
	}
	s.ObjectCount = uint32(count)
	return s
}

// SpawnAsteroid places a new asteroid at the given position with the
// given velocity and scale, and reports false when the object table is
// full. The game server does not call it, so a server-run match starts
// with no asteroids; the object table is otherwise populated only by
// ship/bullet activity.
func (w *World) SpawnAsteroid(posX, posY, velX, velY, scale float32) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	slot := w.allocSlot()
	if slot < 0 {
		return false
	}
	w.objects[slot] = Object{
		Kind: snapshot.KindAsteroid,
		PosX: posX, PosY: posY, VelX: velX, VelY: velY,
		ScaleX: scale, ScaleY: scale,
	}
	return true
}
