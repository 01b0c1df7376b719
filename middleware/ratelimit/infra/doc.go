// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - MemoryStore: contadores de janela fixa em memória, com limpeza periódica
//   - RedisStore: contadores compartilhados entre instâncias (script Lua atômico)
//   - ChanPool: semáforo simples para limite de concorrência
//   - MemoryStatsStore / RedisStatsStore: estatísticas de admissão
package infra
