package match

const GameName = "Meme Wars: The Feed"

// Rule constants. They are part of the determinism contract between peers and are not tunable at
// runtime.
const (
	FeedSize      = 3
	StartingHand  = 2
	MaxHand       = 4
	MaxDeck       = 12
	MemeLimit     = 4
	ExploitLimit  = 8
	StartingMana  = 2
	ManaCap       = 10
	BaseCook      = 1
	BaseFeedYield = 10
	FeedYieldStep = 5
	ScoreToWin    = 30

	StakeCap = 255

	// Spawned by exploit-side filler effects.
	ShitpostID = "d06"

	selfDestructDecay = 1000
)
