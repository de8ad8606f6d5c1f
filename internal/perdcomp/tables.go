package perdcomp

// Familia is the coarse grouping of a document's nature.
type Familia string

const (
	FamiliaDCOMP        Familia = "DCOMP"
	FamiliaREST         Familia = "REST"
	FamiliaRESSARC      Familia = "RESSARC"
	FamiliaCANC         Familia = "CANC"
	FamiliaDesconhecido Familia = "DESCONHECIDO"
)

// Familias lists every family in stable reporting order.
var Familias = []Familia{FamiliaDCOMP, FamiliaREST, FamiliaRESSARC, FamiliaCANC, FamiliaDesconhecido}

// TipoDocumento describes a document-type digit (bloco 4).
type TipoDocumento struct {
	Nome      string
	Descricao string
}

var tiposDocumento = map[int]TipoDocumento{
	1: {Nome: "DCOMP", Descricao: "Declaração de Compensação"},
	2: {Nome: "REST", Descricao: "Pedido de Restituição"},
	8: {Nome: "CANC", Descricao: "Pedido de Cancelamento"},
}

// TipoDocumentoNome returns the display name for a document-type digit, or
// the empty string on miss.
func TipoDocumentoNome(codigo int) string {
	return tiposDocumento[codigo].Nome
}

// TipoDocumentoDescricao returns the long description for a document-type
// digit, or the empty string on miss.
func TipoDocumentoDescricao(codigo int) string {
	return tiposDocumento[codigo].Descricao
}

var naturezaFamilia = map[string]Familia{
	"1.0": FamiliaDCOMP,
	"1.1": FamiliaRESSARC,
	"1.2": FamiliaREST,
	"1.3": FamiliaDCOMP,
	"1.5": FamiliaRESSARC,
	"1.6": FamiliaREST,
	"1.7": FamiliaDCOMP,
	"1.8": FamiliaCANC,
	"1.9": FamiliaDCOMP,
}

// NaturezaObservacoes maps a nature code to its explanatory note.
var NaturezaObservacoes = map[string]string{
	"1.0": "Ressarcimento de IPI",
	"1.1": "Pedido de Ressarcimento (genérico)",
	"1.2": "Pedido de Restituição",
	"1.3": "Declaração de Compensação (geral)",
	"1.5": "Pedido de Ressarcimento (IPI, etc.)",
	"1.6": "Pedido de Restituição",
	"1.7": "Declaração de Compensação",
	"1.8": "Pedido de Cancelamento",
	"1.9": "Cofins Não-Cumulativa – Ressarcimento/Compensação",
}

// FamiliaPorNatureza resolves the family for a nature code, falling back to
// the document-type digit when the nature lookup misses: 1 is a compensation
// declaration, 2 a restitution request, 8 a cancellation request.
func FamiliaPorNatureza(natureza string, tipoCodigo int) Familia {
	if familia, ok := naturezaFamilia[natureza]; ok {
		return familia
	}
	switch tipoCodigo {
	case 1:
		return FamiliaDCOMP
	case 2:
		return FamiliaREST
	case 8:
		return FamiliaCANC
	}
	return FamiliaDesconhecido
}

var creditosDescricao = map[string]string{
	"01": "Ressarcimento de IPI",
	"02": "Saldo Negativo de IRPJ",
	"03": "Outros Créditos",
	"04": "Pagamento indevido ou a maior",
	"15": "Retenção – Lei nº 9.711/98",
	"16": "Outros Créditos (Cancelamento)",
	"17": "Reintegra",
	"18": "Outros Créditos",
	"19": "Cofins Não-Cumulativa – Ressarcimento/Compensação",
	"24": "Pagamento Indevido ou a Maior (eSocial)",
	"25": "Outros Créditos",
	"57": "Outros Créditos",
}

// CreditoDescricao returns the description for a credit code, or the empty
// string on miss.
func CreditoDescricao(codigo string) string {
	return creditosDescricao[codigo]
}

var creditoCategoria = map[string]string{
	"01": "IPI",
	"02": "IRPJ",
	"15": "Retenções",
	"17": "Incentivos Fiscais",
	"19": "PIS/Cofins",
	"24": "eSocial",
	"03": "Genérico",
	"16": "Genérico",
	"18": "Genérico",
	"25": "Genérico",
	"57": "Genérico",
}

// CreditoCategoria returns the tax-category grouping for a credit code, or
// the empty string on miss.
func CreditoCategoria(codigo string) string {
	return creditoCategoria[codigo]
}

// RiscoNivel labels.
const (
	RiscoBaixo        = "BAIXO"
	RiscoMedio        = "MEDIO"
	RiscoAlto         = "ALTO"
	RiscoDesconhecido = "DESCONHECIDO"
)

var creditoRisco = map[string]string{
	"01": RiscoBaixo,
	"02": RiscoBaixo,
	"15": RiscoBaixo,
	"17": RiscoBaixo,
	"19": RiscoBaixo,
	"24": RiscoMedio,
	"03": RiscoAlto,
	"16": RiscoAlto,
	"18": RiscoAlto,
	"25": RiscoAlto,
	"57": RiscoAlto,
}

// CreditoRisco returns the risk level hint for a credit code, or the empty
// string on miss.
func CreditoRisco(codigo string) string {
	return creditoRisco[codigo]
}

// Recomendacao is a strategic recommendation attached to a credit code.
// Generica marks codes that cannot be classified without a manual audit;
// callers surface those differently instead of treating them as ordinary
// guidance.
type Recomendacao struct {
	Texto    string
	Generica bool
}

var creditoRecomendacoes = map[string]Recomendacao{
	"01": {Texto: "Verificar se todos os créditos de IPI estão sendo aproveitados adequadamente"},
	"02": {Texto: "Analisar estratégias de compensação de saldo negativo de IRPJ"},
	"15": {Texto: "Revisar retenções na fonte para otimização de fluxo de caixa"},
	"17": {Texto: "Maximizar aproveitamento do Reintegra para exportações"},
	"19": {Texto: "Verificar cálculo correto de Cofins não-cumulativa"},
	"24": {Texto: "Revisar contribuições eSocial para identificar pagamentos indevidos"},
	"03": {Texto: "ATENÇÃO: Código genérico - requer auditoria detalhada para classificação adequada", Generica: true},
	"16": {Texto: "ATENÇÃO: Código genérico - verificar motivo específico do cancelamento", Generica: true},
	"18": {Texto: "ATENÇÃO: Código genérico - requer análise técnica para identificação do crédito", Generica: true},
	"25": {Texto: "ATENÇÃO: Código genérico - necessária revisão para classificação correta", Generica: true},
	"57": {Texto: "ATENÇÃO: Código genérico - requer auditoria para determinação da natureza", Generica: true},
}

// CreditoRecomendacao returns the strategic recommendation for a credit code.
// Unknown codes yield an empty Texto.
func CreditoRecomendacao(codigo string) Recomendacao {
	return creditoRecomendacoes[codigo]
}

var creditoOportunidades = map[string]string{
	"IPI":               "Revisão de classificação fiscal de produtos e aproveitamento de créditos de insumos",
	"IRPJ":              "Planejamento tributário para otimização de compensações",
	"Retenções":         "Gestão de fluxo de caixa e recuperação de retenções excessivas",
	"Incentivos Fiscais": "Maximização de benefícios fiscais disponíveis",
	"PIS/Cofins":        "Otimização do regime não-cumulativo e aproveitamento de créditos",
	"eSocial":           "Revisão de folha de pagamento e contribuições previdenciárias",
	"Genérico":          "Auditoria técnica necessária para identificação de oportunidades específicas",
}

// CategoriaOportunidade returns the opportunity guidance for a tax category,
// or the empty string on miss.
func CategoriaOportunidade(categoria string) string {
	return creditoOportunidades[categoria]
}
