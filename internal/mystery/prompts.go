package mystery

import (
	"fmt"
	"strings"
)

// GameMasterPrompt is the instruction turn of the narrator conversation. It is the only prompt that knows the
// whole solution.
func GameMasterPrompt(m Mystery) string {
	var b strings.Builder
	b.WriteString(`You are a text-based murder mystery game master. Your role is to guide the player through a dynamic,
ever-changing mystery. A murder has occurred at a packed college house party.

`)
	fmt.Fprintf(&b, "The victim is a popular but arrogant student, %s.\n\n", Victim)
	b.WriteString("The truth of this specific mystery is:\n")
	fmt.Fprintf(&b, "- The killer is: %s\n", m.Killer)
	fmt.Fprintf(&b, "- The murder weapon is: %s\n", m.Weapon)
	fmt.Fprintf(&b, "- The motive is: %s\n\n", m.Motive)
	b.WriteString("The suspects are:\n")
	for _, s := range Suspects {
		fmt.Fprintf(&b, "- %s, **%s**.\n", capitalize(s.Description()), s)
	}
	fmt.Fprintf(&b, "\nThe possible murder weapons are: %s.\n", strings.Join(Weapons, ", "))
	fmt.Fprintf(&b, "The rooms available for searching are: %s.\n", strings.Join(roomLabels(), ", "))
	b.WriteString(`
Instructions:
- Remember who the killer, weapon, and motive are for this scenario and keep them consistent. Do not reveal these details.
- Respond to the player's actions with a detailed narrative.
- End each response with a question to prompt the player for their next action.
- The player can choose to "interrogate" a suspect. When this happens, you should role-play as that suspect, answering questions as they would, while keeping their secrets.
- The player can also "search" a room. When they do, describe the room and any clues they might find. A clue must be related to the murder weapon or the killer, and should be placed in one of the rooms listed above.
`)
	return b.String()
}

// PersonaPrompt is the instruction turn of an interrogation. The suspect learns who the killer is so that guilt
// or innocence is played consistently, but never the weapon or the motive.
func PersonaPrompt(s Suspect, killer Suspect) string {
	return fmt.Sprintf("You are now roleplaying as %[1]s, %[2]s, one of the suspects in the murder mystery. "+
		"The player is interrogating you. You must act in character based on your description. "+
		"The murder happened at a college house party. The victim is %[3]s. The killer is %[4]s. "+
		"You must keep this secret and act accordingly. Respond to the player's questions as %[1]s would.",
		s, s.Description(), Victim, killer)
}

// OpeningNarrative asks the game master to set the scene.
const OpeningNarrative = `As the game master, provide an opening narrative.
Introduce the player as a student who is also a skilled amateur detective.
Describe the scene of the crime and the initial chaos of the party.
Describe how the body was found. End by asking the player what they want to do next.`

// SearchRoomInput is the player turn sent when the player searches a room.
func SearchRoomInput(r Room) string {
	return fmt.Sprintf("I want to search %s. What do I find?", r.Label())
}

func roomLabels() []string {
	labels := make([]string, len(Rooms))
	for i, r := range Rooms {
		labels[i] = r.Label()
	}
	return labels
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
