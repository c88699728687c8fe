package sheets

import "fmt"

const promptTemplate = `Tu es un expert de Donjons & Dragons 5e (règles officielles de l'édition 2014).

Donne-moi la fiche complète du sort "%s" en français, sous forme d'un objet JSON strictement conforme, avec les champs suivants :

- "Nom" (en français)
- "Nom original" (en anglais, tel qu'indiqué dans les sources officielles)
- "Niveau" (entier entre 0 et 9 ; 0 si c'est un tour de magie)
- "École"
- "Temps d'incantation"
- "Portée" (en mètres, pas en pieds. Par exemple : 30 feet → 9 mètres.)
- "Cible" (description de la ou des cibles principales du sort)
- "Composantes"
- "Durée"
- "Concentration" (true si le sort nécessite de la concentration, false sinon)
- "Rituel" (oui ou non)
- "Temps du rituel" (si applicable, sinon null)
- "Type d'attaque / sauvegarde"
- "Effet synthétique" (résumé en 1-2 phrases)
- "Description complète"
- "Effet en surcaste" (si applicable, sinon null)

Toutes les distances et zones doivent être données en mètres (1 pied = 0,3 mètre, avec arrondis raisonnables : 10 pieds → 3 m, 30 pieds → 9 m, 60 pieds → 18 m, 120 pieds → 36 m).

Fournis uniquement du JSON sans texte explicatif autour.`

// Prompt returns the request sent to the model for one spell.
func Prompt(name string) string {
	return fmt.Sprintf(promptTemplate, name)
}
