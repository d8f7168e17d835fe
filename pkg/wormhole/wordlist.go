package wormhole

// wordlist holds the 256 words a pairing code is built from. Every entry
// is lowercase and unique.
var wordlist = [256]string{
	"acid", "acorn", "actor", "adobe", "agent", "alarm", "album", "alien",
	"alpha", "amber", "angle", "ankle", "apple", "apron", "arena", "argon",
	"arrow", "aspen", "atlas", "attic", "audio", "aunt", "autumn", "avocado",
	"axis", "bacon", "badge", "bagel", "baker", "bamboo", "banjo", "barn",
	"basil", "beach", "beacon", "beetle", "bell", "bench", "berry", "bison",
	"blade", "blanket", "blossom", "bonus", "boulder", "bracket", "brave", "bread",
	"brick", "bridge", "bronze", "brook", "bubble", "bucket", "buffalo", "bugle",
	"bundle", "butter", "cabin", "cactus", "camel", "candle", "canoe", "canyon",
	"carbon", "cargo", "carpet", "carrot", "castle", "cedar", "cello", "chalk",
	"cherry", "chess", "chimney", "cider", "cinema", "circus", "citrus", "clay",
	"cliff", "clock", "cloud", "clover", "cobalt", "cocoa", "comet", "copper",
	"coral", "cotton", "cougar", "crater", "crayon", "cricket", "crystal", "cupid",
	"dagger", "daisy", "delta", "denim", "desert", "diamond", "dingo", "disco",
	"dolphin", "domino", "donut", "dragon", "drum", "dune", "eagle", "easel",
	"echo", "eclipse", "elbow", "elder", "ember", "emerald", "engine", "falcon",
	"feather", "fern", "ferry", "fiddle", "flint", "forest", "fossil", "fountain",
	"fox", "galaxy", "garden", "garlic", "gecko", "geyser", "ginger", "glacier",
	"globe", "gopher", "granite", "grape", "gravel", "guitar", "hammer", "harbor",
	"harvest", "hazel", "helmet", "heron", "hickory", "honey", "horizon", "hornet",
	"husky", "igloo", "indigo", "iris", "island", "ivory", "jacket", "jaguar",
	"jasmine", "jelly", "jigsaw", "jungle", "juniper", "kayak", "kernel", "kettle",
	"kiwi", "koala", "ladder", "lagoon", "lantern", "lava", "lemon", "lentil",
	"lilac", "lime", "linen", "lizard", "llama", "lobster", "locket", "lotus",
	"magnet", "mango", "maple", "marble", "meadow", "melon", "meteor", "mint",
	"mirror", "mitten", "monsoon", "mosaic", "moss", "muffin", "nectar", "needle",
	"nickel", "noodle", "nutmeg", "oasis", "oat", "ocean", "olive", "onyx",
	"opal", "orbit", "orchid", "otter", "owl", "paddle", "panda", "papaya",
	"parrot", "pebble", "pepper", "piano", "pickle", "pigeon", "pilot", "pine",
	"planet", "plum", "polar", "pony", "poppy", "prism", "puffin", "pumpkin",
	"quartz", "quill", "quiver", "rabbit", "radar", "radish", "raven", "reef",
	"ribbon", "river", "robin", "rocket", "saddle", "saffron", "salmon", "sequoia",
	"shadow", "sierra", "silver", "sparrow", "spruce", "thistle", "tulip", "walnut",
}
