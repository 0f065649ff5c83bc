// Package services – Responder
//
// This file implements the canned "AI" responder used on the general
// conversation path. It is a pure function over the inbound text: a fixed,
// ordered rule table matched case-insensitively, first match wins. There is
// no external call and no state; the same input always yields the same
// reply, and internal failures degrade to a generic fallback instead of
// propagating.
package services

import "strings"

// responderRule pairs a set of trigger substrings with the canned reply.
type responderRule struct {
	triggers []string
	reply    string
}

// responderRules is evaluated in order; the first rule whose trigger occurs
// anywhere in the lowercased text wins. Substring semantics are intentional
// ("hi" inside "this" greets, "thank" also covers "thanks").
var responderRules = []responderRule{
	{
		triggers: []string{"hello", "hi", "hey"},
		reply:    "Hello! I'm an AI assistant. How can I help you today?",
	},
	{
		triggers: []string{"help"},
		reply:    "I'm here to assist you! Please describe your issue and I'll connect you with a human agent if needed.",
	},
	{
		triggers: []string{"price", "cost", "how much"},
		reply:    "Our pricing varies based on your needs. I can connect you with a sales agent for detailed pricing information.",
	},
	{
		triggers: []string{"thank", "thanks"},
		reply:    "You're welcome! Is there anything else I can help you with?",
	},
	{
		triggers: []string{"bye", "goodbye"},
		reply:    "Goodbye! Feel free to reach out if you need more assistance.",
	},
}

// respondFallback answers anything the rule table does not cover.
const respondFallback = "Thank you for your message. I've forwarded it to our support team. An agent will respond shortly. In the meantime, is there any other information I can provide?"

// respondDegraded replaces the reply when matching itself fails.
const respondDegraded = "I understand you're looking for assistance. Our team will get back to you shortly."

// Respond maps inbound text to a canned support reply. It never fails: a
// panic during matching is converted into a generic acknowledgement so the
// message-handling path cannot crash on responder internals.
func Respond(text string) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			reply = respondDegraded
		}
	}()

	lower := strings.ToLower(text)
	for _, rule := range responderRules {
		for _, t := range rule.triggers {
			if strings.Contains(lower, t) {
				return rule.reply
			}
		}
	}
	return respondFallback
}
