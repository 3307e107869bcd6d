package session

// DefaultScenarios is the built-in interactive demo script, ordered
// from routine inquiries to hostile customers.
var DefaultScenarios = []string{
	"My order was supposed to arrive yesterday but I haven't received anything. Can you check the status?",

	"This is the third time I'm contacting you about my damaged dining table. When will this be resolved?",

	"This is absolutely ridiculous! Your delivery team are complete idiots who damaged my wall and now you're ignoring me. Fix this NOW or I'm never shopping here again!",

	"What the heck is wrong with your company?! This whole experience has been a complete disaster and I'm sick of being redirected by your useless customer service!",

	"I don't care about your policies. I want a full refund immediately and I expect you to pay for my time wasted dealing with this garbage. Make it happen or I'll blast you on social media.",
}
