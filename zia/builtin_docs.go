package zia

var BuiltinDocs = map[string]*NativeDoc{
	"horloge": NewNativeDoc(
		"Renvoie le nombre de secondes écoulées depuis le démarrage du programme.",
		nil,
		"nombre",
	),
	"type": NewNativeDoc(
		"Renvoie le nom du type d'une valeur.",
		[]ParamDoc{
			{"valeur", "La valeur à inspecter."},
		},
		"chaine",
	),
	"texte": NewNativeDoc(
		"Convertit une valeur en chaîne, comme le ferait afficher.",
		[]ParamDoc{
			{"valeur", "La valeur à convertir."},
		},
		"chaine",
	),
	"nombre": NewNativeDoc(
		"Convertit une chaîne ou un booléen en nombre.",
		[]ParamDoc{
			{"valeur", "La valeur à convertir."},
		},
		"nombre",
	),
	"longueur": NewNativeDoc(
		"Renvoie le nombre de caractères d'une chaîne.",
		[]ParamDoc{
			{"chaine", "La chaîne à mesurer."},
		},
		"nombre",
	),
	"racine": NewNativeDoc(
		"Renvoie la racine carrée d'un nombre positif.",
		[]ParamDoc{
			{"x", "Un nombre positif ou nul."},
		},
		"nombre",
	),
	"abs": NewNativeDoc(
		"Renvoie la valeur absolue d'un nombre.",
		[]ParamDoc{
			{"x", "Un nombre."},
		},
		"nombre",
	),
	"plancher": NewNativeDoc(
		"Arrondit un nombre à l'entier inférieur.",
		[]ParamDoc{
			{"x", "Un nombre."},
		},
		"nombre",
	),
	"plafond": NewNativeDoc(
		"Arrondit un nombre à l'entier supérieur.",
		[]ParamDoc{
			{"x", "Un nombre."},
		},
		"nombre",
	),
	"arrondi": NewNativeDoc(
		"Arrondit un nombre à l'entier le plus proche.",
		[]ParamDoc{
			{"x", "Un nombre."},
		},
		"nombre",
	),
	"puissance": NewNativeDoc(
		"Élève une base à une puissance.",
		[]ParamDoc{
			{"base", "La base."},
			{"exposant", "L'exposant."},
		},
		"nombre",
	),
	"min": NewNativeDoc(
		"Renvoie le plus petit de deux nombres.",
		[]ParamDoc{
			{"a", "Un nombre."},
			{"b", "Un nombre."},
		},
		"nombre",
	),
	"max": NewNativeDoc(
		"Renvoie le plus grand de deux nombres.",
		[]ParamDoc{
			{"a", "Un nombre."},
			{"b", "Un nombre."},
		},
		"nombre",
	),
	"majuscules": NewNativeDoc(
		"Renvoie la chaîne convertie en majuscules.",
		[]ParamDoc{
			{"chaine", "La chaîne à convertir."},
		},
		"chaine",
	),
	"minuscules": NewNativeDoc(
		"Renvoie la chaîne convertie en minuscules.",
		[]ParamDoc{
			{"chaine", "La chaîne à convertir."},
		},
		"chaine",
	),
	"aleatoire": NewNativeDoc(
		"Renvoie un nombre pseudo-aléatoire dans [0, 1).",
		nil,
		"nombre",
	),
}
