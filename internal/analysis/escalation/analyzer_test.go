package escalation

import "testing"

func TestDetectTalkToAHuman(t *testing.T) {
	decision := Detect("Can I talk to a human please?")
	if !decision.Requested {
		t.Fatal("expected escalation to be requested")
	}
	if decision.Reason != Human {
		t.Fatalf("expected human reason, got %s", decision.Reason)
	}
}

func TestDetectWhatsApp(t *testing.T) {
	decision := Detect("Can I contact you on WhatsApp?")
	if !decision.Requested || decision.Reason != WhatsApp {
		t.Fatalf("expected whatsapp escalation, got %+v", decision)
	}
}

func TestDetectRomanUrdu(t *testing.T) {
	decision := Detect("mujhe kisi insaan se baat karni hai")
	if !decision.Requested || decision.Reason != Human {
		t.Fatalf("expected roman urdu human escalation, got %+v", decision)
	}
}

func TestDetectIgnoresWordFragments(t *testing.T) {
	if decision := Detect("Is this product good for humanity?"); decision.Requested {
		t.Fatalf("did not expect escalation, got %+v", decision)
	}
}

func TestDetectPlainQuestion(t *testing.T) {
	if decision := Detect("How long does shipping take?"); decision.Requested {
		t.Fatalf("did not expect escalation, got %+v", decision)
	}
}

func TestDetectRequestPhrases(t *testing.T) {
	cases := []struct {
		utterance string
		reason    Reason
	}{
		{"Please connect me to an agent", Agent},
		{"I need a representative", Agent},
		{"How do I contact customer support?", Support},
		{"I want to speak with customer service", Support},
		{"agent se baat karwa dein", Agent},
	}
	for _, tc := range cases {
		decision := Detect(tc.utterance)
		if !decision.Requested || decision.Reason != tc.reason {
			t.Fatalf("%q: expected %s, got %+v", tc.utterance, tc.reason, decision)
		}
	}
}

func TestDetectIgnoresMentionsWithoutRequest(t *testing.T) {
	utterances := []string{
		"Do you sell human hair extensions?",
		"Can I order through WhatsApp?",
		"Which courier agent delivers to Lahore?",
		"What is your helpline number?",
		"Is the support for this mattress firm?",
	}
	for _, utterance := range utterances {
		if decision := Detect(utterance); decision.Requested {
			t.Fatalf("%q: did not expect escalation, got %+v", utterance, decision)
		}
	}
}
