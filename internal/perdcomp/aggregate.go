package perdcomp

import (
	"sort"

	"github.com/leadfisco/fiscaldesk/internal/domain"
)

// RiskDistribution counts risk-level labels across facts. Facts without a
// label count as DESCONHECIDO. Returns the dominant level (highest count,
// alphabetical label on ties) and the full sorted tag list.
func RiskDistribution(facts []domain.Fact) (string, []domain.CountBlock) {
	counts := make(map[string]int)
	for _, fact := range facts {
		label := fact.RiscoNivel
		if label == "" {
			label = RiscoDesconhecido
		}
		counts[label]++
	}
	tags := sortedBlocks(counts)
	if len(tags) == 0 {
		return "", nil
	}
	return tags[0].Label, tags
}

// CreditoDistribution groups facts by credit description, falling back to
// the credit code and then DESCONHECIDO.
func CreditoDistribution(facts []domain.Fact) []domain.CountBlock {
	counts := make(map[string]int)
	for _, fact := range facts {
		label := fact.CreditoDescricao
		if label == "" {
			label = fact.CreditoCodigo
		}
		if label == "" {
			label = RiscoDesconhecido
		}
		counts[label]++
	}
	return sortedBlocks(counts)
}

// NaturezaDistribution groups facts by nature code, dropping facts without
// one.
func NaturezaDistribution(facts []domain.Fact) []domain.CountBlock {
	counts := make(map[string]int)
	for _, fact := range facts {
		if fact.Natureza == "" {
			continue
		}
		counts[fact.Natureza]++
	}
	return sortedBlocks(counts)
}

func sortedBlocks(counts map[string]int) []domain.CountBlock {
	if len(counts) == 0 {
		return nil
	}
	blocks := make([]domain.CountBlock, 0, len(counts))
	for label, count := range counts {
		blocks = append(blocks, domain.CountBlock{Label: label, Count: count})
	}
	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].Count != blocks[j].Count {
			return blocks[i].Count > blocks[j].Count
		}
		return blocks[i].Label < blocks[j].Label
	})
	return blocks
}

// TopCredito is one entry of the top-credits ranking.
type TopCredito struct {
	Codigo     string `json:"codigo"`
	Descricao  string `json:"descricao,omitempty"`
	Quantidade int    `json:"quantidade"`
}

// Agregado is the portfolio-level aggregate over a provider response.
type Agregado struct {
	Total                int             `json:"total"`
	Canc                 int             `json:"canc"`
	TotalSemCancelamento int             `json:"totalSemCancelamento"`
	PorFamilia           map[Familia]int `json:"porFamilia"`
	PorNatureza          map[string]int  `json:"porNatureza"`
	PorCredito           map[string]int  `json:"porCredito"`
	TopCreditos          []TopCredito    `json:"topCreditos"`
	PorMotivo            map[Motivo]int  `json:"porMotivo"`
	Cancelamentos        []string        `json:"cancelamentosLista"`
}

// Agrega derives the portfolio aggregate from raw provider records. Records
// whose document code does not parse are skipped entirely.
func Agrega(lista []domain.ProviderRecord) Agregado {
	agg := Agregado{
		Total:         0,
		Canc:          0,
		PorFamilia:    make(map[Familia]int, len(Familias)),
		PorNatureza:   make(map[string]int),
		PorCredito:    make(map[string]int),
		TopCreditos:   nil,
		PorMotivo:     make(map[Motivo]int, len(Motivos)),
		Cancelamentos: nil,
	}
	for _, familia := range Familias {
		agg.PorFamilia[familia] = 0
	}
	for _, motivo := range Motivos {
		agg.PorMotivo[motivo] = 0
	}

	for _, item := range lista {
		numero := item.Perdcomp
		if numero == "" {
			numero = item.Numero
		}
		if numero == "" {
			continue
		}
		parsed := Parse(numero)
		if !parsed.Valido {
			continue
		}

		agg.Total++
		familia := FamiliaPorNatureza(parsed.Natureza, parsed.TipoCodigo)
		agg.PorFamilia[familia]++
		agg.PorNatureza[parsed.Natureza]++
		agg.PorCredito[parsed.Credito]++
		agg.PorMotivo[NormalizaMotivo(item.Situacao, item.SituacaoDetalhamento)]++

		if familia == FamiliaCANC {
			agg.Cancelamentos = append(agg.Cancelamentos, parsed.Formatted)
		}
	}

	agg.Canc = agg.PorFamilia[FamiliaCANC]
	agg.TotalSemCancelamento = agg.Total - agg.Canc
	agg.TopCreditos = topCreditos(agg.PorCredito, 3)
	return agg
}

func topCreditos(porCredito map[string]int, limit int) []TopCredito {
	ranked := make([]TopCredito, 0, len(porCredito))
	for codigo, quantidade := range porCredito {
		ranked = append(ranked, TopCredito{
			Codigo:     codigo,
			Descricao:  CreditoDescricao(codigo),
			Quantidade: quantidade,
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Quantidade != ranked[j].Quantidade {
			return ranked[i].Quantidade > ranked[j].Quantidade
		}
		return ranked[i].Codigo < ranked[j].Codigo
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
