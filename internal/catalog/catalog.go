// Package catalog is the static feature table of the travel assistant. Every
// feature maps a stable id to its clarifying prompt, its payload shape and the
// prompt rendered for the assistant. Adding a feature is a data change here,
// not a new code path.
package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// ChatID identifies the generic chat fallback used when no feature is armed.
const ChatID = "chat"

// roteiroSeparator splits "destino por dias" input for the itinerary feature.
const roteiroSeparator = " por "

// defaultRoteiroDays is used when the caller gives no day count.
const defaultRoteiroDays = "5"

// Descriptor describes one feature of the assistant.
type Descriptor struct {
	// ID is the stable key, also the endpoint path segment.
	ID string
	// PromptText is the clarifying question shown before the user supplies
	// the feature's argument.
	PromptText string
	// Fields lists the payload field names in wire order. The first field is
	// the primary one that raw text maps into.
	Fields []string
	// System is the assistant persona for this feature.
	System string

	buildPayload func(raw string) map[string]string
	buildPrompt  func(p map[string]string) string
}

// BuildPayload transforms free text into the feature's wire payload.
func (d Descriptor) BuildPayload(raw string) map[string]string {
	return d.buildPayload(raw)
}

// Prompt renders the assistant prompt for an already-built payload.
func (d Descriptor) Prompt(payload map[string]string) string {
	return d.buildPrompt(d.fillDefaults(payload))
}

// fillDefaults completes a structured payload with the same defaults the raw
// text builder applies, so both submission paths render identical prompts.
func (d Descriptor) fillDefaults(payload map[string]string) map[string]string {
	out := make(map[string]string, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	switch d.ID {
	case "roteiro":
		if out["dias"] == "" {
			out["dias"] = defaultRoteiroDays
		}
	case "documentacao":
		if out["origem"] == "" {
			out["origem"] = "Brasil"
		}
	}
	return out
}

// singleField builds the common payload shape: the whole trimmed text mapped
// into one feature-specific field.
func singleField(name string) func(string) map[string]string {
	return func(raw string) map[string]string {
		return map[string]string{name: strings.TrimSpace(raw)}
	}
}

// buildRoteiro splits once on the literal " por " separator; the left side is
// the destination, the right side the day count. No trimming is applied beyond
// the split, and an absent or empty right side falls back to the default.
func buildRoteiro(raw string) map[string]string {
	parts := strings.SplitN(raw, roteiroSeparator, 2)
	dias := defaultRoteiroDays
	if len(parts) == 2 && parts[1] != "" {
		dias = parts[1]
	}
	return map[string]string{"destino": parts[0], "dias": dias}
}

func buildDocumentacao(raw string) map[string]string {
	return map[string]string{"destino": strings.TrimSpace(raw), "origem": "Brasil"}
}

// chat is the fallback descriptor for the generic assistant.
var chat = Descriptor{
	ID:         ChatID,
	PromptText: "Como posso ajudar na sua viagem?",
	Fields:     []string{"message"},
	System: "Você é um assistente de viagem profissional, especializado em dar " +
		"informações precisas e úteis sobre destinos, roteiros, documentação e " +
		"dicas de viagem. Seja sempre claro e organizado em suas respostas.",
	buildPayload: singleField("message"),
	buildPrompt: func(p map[string]string) string {
		return p["message"]
	},
}

// features is the catalog proper. System personas and prompt wording follow
// the assistant contexts the product always used.
var features = map[string]Descriptor{
	"roteiro": {
		ID:           "roteiro",
		PromptText:   "Para onde você quer ir e por quantos dias? (ex: Paris por 7)",
		Fields:       []string{"destino", "dias"},
		System:       persona("Você é um especialista em roteiros de viagem."),
		buildPayload: buildRoteiro,
		buildPrompt: func(p map[string]string) string {
			return fmt.Sprintf("Crie um roteiro detalhado para %s dias em %s, incluindo atrações turísticas, preços estimados e horários sugeridos.", p["dias"], p["destino"])
		},
	},
	"trem": {
		ID:           "trem",
		PromptText:   "Quais cidades você quer visitar de trem?",
		Fields:       []string{"destinos"},
		System:       persona("Você é um especialista em viagens de trem pela Europa."),
		buildPayload: singleField("destinos"),
		buildPrompt: func(p map[string]string) string {
			return fmt.Sprintf("Crie um roteiro por %s de trem com a rota mais viável, com 2 dias em cada cidade, com tempo de viagem entre as cidades e o nome das estações. No final, fale qual passe de trem utilizar e preço médio em reais.", p["destinos"])
		},
	},
	"precos": {
		ID:           "precos",
		PromptText:   "Qual o destino da sua viagem?",
		Fields:       []string{"destino"},
		System:       persona("Você é um especialista em custos de viagem."),
		buildPayload: singleField("destino"),
		buildPrompt: func(p map[string]string) string {
			return fmt.Sprintf("Quanto custa uma viagem para %s em um estilo de preço intermediário em reais?", p["destino"])
		},
	},
	"checklist": {
		ID:           "checklist",
		PromptText:   "Para qual destino devo montar o checklist?",
		Fields:       []string{"destino"},
		System:       persona("Você é um especialista em preparação para viagens."),
		buildPayload: singleField("destino"),
		buildPrompt: func(p map[string]string) string {
			return fmt.Sprintf("Quais itens devo levar em uma viagem para %s?", p["destino"])
		},
	},
	"gastronomia": {
		ID:           "gastronomia",
		PromptText:   "Em qual destino você quer comer bem?",
		Fields:       []string{"destino"},
		System:       persona("Você é um chef especialista em gastronomia mundial."),
		buildPayload: singleField("destino"),
		buildPrompt: func(p map[string]string) string {
			return fmt.Sprintf("Quais são os melhores restaurantes em %s para um orçamento intermediário? Liste os pratos típicos e preços médios em reais.", p["destino"])
		},
	},
	"documentacao": {
		ID:           "documentacao",
		PromptText:   "Para qual país você vai viajar?",
		Fields:       []string{"destino", "origem"},
		System:       persona("Você é um especialista em documentação para viagens."),
		buildPayload: buildDocumentacao,
		buildPrompt: func(p map[string]string) string {
			return fmt.Sprintf("Quais os requisitos de visto para uma pessoa de %s visitar %s?", p["origem"], p["destino"])
		},
	},
	"guia": {
		ID:           "guia",
		PromptText:   "Qual lugar você quer explorar?",
		Fields:       []string{"local"},
		System:       persona("Você é um guia turístico local experiente."),
		buildPayload: singleField("local"),
		buildPrompt: func(p map[string]string) string {
			return fmt.Sprintf("Quais passeios posso fazer em %s?", p["local"])
		},
	},
	"festivais": {
		ID:           "festivais",
		PromptText:   "Em qual cidade você quer ver festivais e eventos?",
		Fields:       []string{"cidade"},
		System:       persona("Você é um especialista em eventos e festivais."),
		buildPayload: singleField("cidade"),
		buildPrompt: func(p map[string]string) string {
			return fmt.Sprintf("Quais são os principais festivais e eventos acontecendo em %s nos próximos meses?", p["cidade"])
		},
	},
	"hospedagem": {
		ID:           "hospedagem",
		PromptText:   "Em qual cidade você vai se hospedar?",
		Fields:       []string{"cidade"},
		System:       persona("Você é um especialista em hospedagem."),
		buildPayload: singleField("cidade"),
		buildPrompt: func(p map[string]string) string {
			return fmt.Sprintf("Quais são as melhores áreas para se hospedar em %s, considerando diferentes perfis de viagem?", p["cidade"])
		},
	},
	"historias": {
		ID:           "historias",
		PromptText:   "Sobre qual cidade você quer ouvir histórias?",
		Fields:       []string{"cidade"},
		System:       persona("Você é um historiador e conhecedor de curiosidades."),
		buildPayload: singleField("cidade"),
		buildPrompt: func(p map[string]string) string {
			return fmt.Sprintf("Conte histórias e curiosidades interessantes sobre %s.", p["cidade"])
		},
	},
	"frases": {
		ID:           "frases",
		PromptText:   "Qual idioma você quer aprender frases úteis?",
		Fields:       []string{"idioma"},
		System:       persona("Você é um professor de idiomas."),
		buildPayload: singleField("idioma"),
		buildPrompt: func(p map[string]string) string {
			return fmt.Sprintf("Quais são as frases mais úteis para um turista em %s?", p["idioma"])
		},
	},
	"seguranca": {
		ID:           "seguranca",
		PromptText:   "Para qual cidade você quer dicas de segurança?",
		Fields:       []string{"cidade"},
		System:       persona("Você é um especialista em segurança para viajantes."),
		buildPayload: singleField("cidade"),
		buildPrompt: func(p map[string]string) string {
			return fmt.Sprintf("Quais são as principais dicas de segurança para turistas em %s?", p["cidade"])
		},
	},
	"hospitais": {
		ID:           "hospitais",
		PromptText:   "Em qual cidade você quer encontrar hospitais?",
		Fields:       []string{"cidade"},
		System:       persona("Você é um especialista em saúde para viajantes."),
		buildPayload: singleField("cidade"),
		buildPrompt: func(p map[string]string) string {
			return fmt.Sprintf("Quais são os hospitais mais próximos e bem avaliados em %s?", p["cidade"])
		},
	},
	"consulados": {
		ID:           "consulados",
		PromptText:   "Em qual cidade você precisa do consulado brasileiro?",
		Fields:       []string{"cidade"},
		System:       persona("Você é um especialista em serviços consulares."),
		buildPayload: singleField("cidade"),
		buildPrompt: func(p map[string]string) string {
			return fmt.Sprintf("Onde fica o consulado Brasileiro em %s? Me informa detalhes de como entrar em contato e endereço e como agir em caso de problemas.", p["cidade"])
		},
	},
}

func persona(context string) string {
	return context + " Forneça informações precisas e úteis."
}

// Resolve returns the descriptor for a feature id. An empty or unknown id
// resolves to the generic chat descriptor; callers never get a miss.
func Resolve(id string) Descriptor {
	if d, ok := features[id]; ok {
		return d
	}
	return chat
}

// Known reports whether id names a real feature (the chat fallback excluded).
func Known(id string) bool {
	_, ok := features[id]
	return ok
}

// IDs returns all feature ids in sorted order.
func IDs() []string {
	ids := make([]string, 0, len(features))
	for id := range features {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
