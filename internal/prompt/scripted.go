package prompt

import "fmt"

// Scripted is a Port that replays canned answers, for tests and unattended runs.
type Scripted struct {
	// Answers are consumed in order. "y"/"n" answer Confirm; anything else
	// is returned from Choose as the chosen key. Once exhausted, the
	// default is used.
	Answers []string
	// Asked records every question in order.
	Asked []string
}

// Confirm implements Port.
func (s *Scripted) Confirm(question string, def bool) (bool, error) {
	s.Asked = append(s.Asked, question)
	answer, ok := s.next()
	if !ok {
		return def, nil
	}
	switch answer {
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	default:
		return def, fmt.Errorf("scripted answer %q is not yes/no", answer)
	}
}

// Choose implements Port.
func (s *Scripted) Choose(question string, choices []Choice, def string) (string, error) {
	s.Asked = append(s.Asked, question)
	answer, ok := s.next()
	if !ok {
		return def, nil
	}
	if key, found := match(answer, choices); found {
		return key, nil
	}
	return def, fmt.Errorf("scripted answer %q is not a valid choice", answer)
}

func (s *Scripted) next() (string, bool) {
	if len(s.Answers) == 0 {
		return "", false
	}
	a := s.Answers[0]
	s.Answers = s.Answers[1:]
	return a, true
}
